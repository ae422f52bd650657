package main

import "shardkv/cmd"

func main() {
	cmd.Execute()
}
