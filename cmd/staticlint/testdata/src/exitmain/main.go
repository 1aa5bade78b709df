package main

import "os"

func main() {
	go func() {
		os.Exit(2)
	}()
	defer func() {
		os.Exit(3)
	}()

	if len(os.Args) > 5 {
		os.Exit(1) // want "использование os.Exit в функции main запрещено"
	}
}

func exit() {
	os.Exit(1)
}
