// Command bundle runs the bundler core's passes over an asset graph
// document and reports the resulting bundle graph.
package main

import "github.com/dsblv/parcel/cmd/bundle/internal/command"

func main() {
	command.Execute()
}
