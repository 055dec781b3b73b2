// Command dbcreate creates a new database: a directory that will hold
// the database's record and index files.
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

	if _, err := os.Stat(dbname); err == nil {
		fmt.Fprintf(os.Stderr, "%s: database %s already exists\n", os.Args[0], dbname)
		os.Exit(1)
	}

	if err := os.Mkdir(dbname, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "%s: create database %s: %v\n", os.Args[0], dbname, err)
		os.Exit(1)
	}
}
