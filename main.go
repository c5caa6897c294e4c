package main

import "github.com/redactyl/leaktrace/cmd/leaktrace"

func main() { leaktrace.Execute() }
