// Command heapctl replays and generates allocation traces against the
// heapkit allocators.
package main

func main() {
	execute()
}
