// Package pprint: launchpad banner.
package pprint

import "fmt"

// PrintBanner prints the launchpad banner with version and tagline.
func PrintBanner(version, buildDate string) {
	lines := []string{
		StylePrimary.Render("  ╦  ╔═╗╦ ╦╔╗╔╔═╗╦ ╦╔═╗╔═╗╔╦╗"),
		StylePrimary.Render("  ║  ╠═╣║ ║║║║║  ╠═╣╠═╝╠═╣ ║║"),
		StyleAccent.Render("  ╩═╝╩ ╩╚═╝╝╚╝╚═╝╩ ╩╩  ╩ ╩═╩╝"),
	}

	fmt.Fprintln(Out)
	for _, l := range lines {
		fmt.Fprintln(Out, l)
	}
	fmt.Fprintln(Out)

	versionStr := StyleAccent.Render("  " + version)
	if buildDate != "" {
		versionStr += StyleMuted.Render("  built " + buildDate)
	}
	fmt.Fprintln(Out, StyleMuted.Render("  Web project bootstrapping from the terminal"))
	fmt.Fprintln(Out, versionStr)
	fmt.Fprintln(Out)
}
