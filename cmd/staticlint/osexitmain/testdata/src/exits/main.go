package main

import (
	"os"
	"syscall"
)

func main() {
	defer cleanup()
	if len(os.Args) > 3 {
		os.Exit(2) // want `direct call to os.Exit in main.main`
	}
	func() {
		os.Exit(1) // want `direct call to os.Exit in main.main`
	}()
	syscall.Exit(3) // want `direct call to syscall.Exit in main.main`
}

func cleanup() {}

func helper() {
	os.Exit(1)
}
