// Command overdraw measures GPU fragment overdraw of a configured scene.
//
// Usage:
//
//	overdraw run --frames 300            # measure and print a report
//	overdraw watch                       # live terminal view
//	overdraw replay recordings/overdraw-20260301T120000Z
//	overdraw shaders check               # validate the WGSL programs
//	overdraw backends                    # list registered backends
package main

func main() {
	Execute()
}
