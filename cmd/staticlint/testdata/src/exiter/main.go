package main

import "os"

func main() {
	defer func() {}()
	os.Exit(1) // want `os.Exit call is forbidden in main function`
}

func helper() {
	os.Exit(2)
}
