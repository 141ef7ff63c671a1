package main

import "hygiene-log-backend/cmd"

func main() {
	cmd.Run()
}
