// Command tracezctl is a small demonstration CLI for the tracez core: it
// builds a Tracer from a YAML config and runs a loopback client/server
// trace, printing the emitted Zipkin JSON.
package main

func main() {
	Execute()
}
