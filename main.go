package main

import "github.com/BondSpread/iol-arb/cmd"

func main() {
	cmd.Execute()
}
