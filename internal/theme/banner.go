package theme

import (
	"fmt"
)

// Banner returns the CLI banner.
func Banner() string {
	const purple = "\033[35m"
	const blue = "\033[36m"
	const reset = "\033[0m"

	art := "" +
		purple + "  ┌─────────────────────────────┐\n" + reset +
		purple + "  │" + reset + "   ◆  " + blue + "E A R N F R A M E" + reset + "  ◆   " + purple + "│\n" + reset +
		purple + "  └─────────────────────────────┘\n" + reset +
		"   earnings at a glance, one frame away\n"
	return art
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
