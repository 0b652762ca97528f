package ui

import "github.com/fatih/color"

// SectionHeaderColor highlights section titles in command output.
var SectionHeaderColor = color.New(color.BgHiBlack, color.FgHiWhite)
