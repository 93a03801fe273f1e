package main

import "lsadf-backend/cmd"

func main() {
	cmd.Execute()
}
