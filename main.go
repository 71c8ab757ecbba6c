/*
Copyright © 2023 Glossopoeia
*/
package main

import "github.com/glossopoeia/treevm/cmd"

func main() {
	cmd.Execute()
}
