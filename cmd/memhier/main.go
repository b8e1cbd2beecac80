// Command memhier is the cobra-based CLI entry point for the cache
// hierarchy simulator, grounded on the teacher's akita/cmd package.
package main

func main() {
	Execute()
}
