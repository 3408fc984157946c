package colormap

import (
	"fmt"

	"hstin/polarmap/internal/config"
)

var labels = map[string]string{
	"sic": "Sea Ice Concentration",
	"tos": "Sea Surface Temperature",
	"psl": "Sea Level Pressure",
}

// Label is the colourbar caption of a variable, with its units.
func Label(variable, units string) (string, error) {
	name, ok := labels[variable]
	if !ok {
		return "", fmt.Errorf("%w: %q has no colorbar label", config.ErrUnknownVariable, variable)
	}
	return fmt.Sprintf("%s (%s)", name, units), nil
}
