// Command itergraph inspects and runs graph files with blocks moved across
// iteration boundaries.
package main

func main() {
	Execute()
}
