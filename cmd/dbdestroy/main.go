// Command dbdestroy removes a database directory and everything in
// it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s dbname\n", os.Args[0])
		os.Exit(1)
	}
	dbname := os.Args[1]

	info, err := os.Stat(dbname)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "%s: database %s not found\n", os.Args[0], dbname)
		os.Exit(1)
	}

	if err := os.RemoveAll(dbname); err != nil {
		fmt.Fprintf(os.Stderr, "%s: destroy database %s: %v\n", os.Args[0], dbname, err)
		os.Exit(1)
	}
}
