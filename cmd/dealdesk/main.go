// Command dealdesk runs the deal pipeline and collections BFF and offers
// operator commands against the same backend.
package main

func main() {
	Execute()
}
