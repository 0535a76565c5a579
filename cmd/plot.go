package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/gw-scan/gw-scan/scan"
)

const (
	profileCols = 64
	profileRows = 12
)

// printProfile renders a coarse ASCII profile of the maximum
// log-likelihood per chirp-mass bin. It stands in for the plotting
// toggle; real figures are produced downstream from the CSV output.
func printProfile(table *scan.ResultTable) {
	chirpMass, logL := table.Profile()
	if len(chirpMass) == 0 {
		fmt.Println("no surviving samples to plot")
		return
	}

	loM, hiM := chirpMass[0], chirpMass[0]
	for _, m := range chirpMass {
		loM = math.Min(loM, m)
		hiM = math.Max(hiM, m)
	}
	if hiM == loM {
		hiM = loM + 1
	}

	binMax := make([]float64, profileCols)
	binSet := make([]bool, profileCols)
	maxL := math.Inf(-1)
	for i, m := range chirpMass {
		bin := int(float64(profileCols-1) * (m - loM) / (hiM - loM))
		if !binSet[bin] || logL[i] > binMax[bin] {
			binMax[bin] = logL[i]
			binSet[bin] = true
		}
		maxL = math.Max(maxL, logL[i])
	}

	// One row per likelihood decile below the maximum.
	span := 100.0
	for r := 0; r < profileRows; r++ {
		threshold := maxL - span*float64(r)/float64(profileRows-1)
		line := make([]byte, profileCols)
		for c := 0; c < profileCols; c++ {
			line[c] = ' '
			if binSet[c] && binMax[c] >= threshold {
				line[c] = '*'
			}
		}
		fmt.Printf("%12.1f |%s\n", threshold, string(line))
	}
	fmt.Printf("%12s +%s\n", "", strings.Repeat("-", profileCols))
	fmt.Printf("%12s  %-10.3f%*s%10.3f\n", "", loM, profileCols-20, "chirp mass", hiM)
}
