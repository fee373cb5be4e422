package main

import "github.com/adverant/nexus/ocr-worker/cmd/ocr/cmd"

func main() {
	cmd.Execute()
}
