// Command geosql attaches reference boundaries to IBGE indicator tables and
// renders the result as PostGIS load scripts.
//
//	geosql join --variant sector --workers 4
//	geosql emit --config configs/municipal.json
//	geosql run -v
//	geosql unify --years 2016,2017,2018
//	geosql validate --config configs/sector.json
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFilesFailed) {
			fmt.Fprintln(os.Stderr, "geosql:", err)
		}
		os.Exit(1)
	}
}
