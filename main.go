package main

import "github.com/dataheck/maintenanace-issue-report/cmd"

func main() {
	cmd.Execute()
}
