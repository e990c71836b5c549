package cmd

var ParseInput = parseInput
