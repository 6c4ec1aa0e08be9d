package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/IRL-CT/robotability/internal/model"
)

var beaconSite string

var beaconsCmd = &cobra.Command{
	Use:   "beacons",
	Short: "Write the deployment beacon rings as a GeoJSON FeatureCollection",
	RunE: func(cmd *cobra.Command, args []string) error {
		env := newAppEnv(cfg)

		sites := env.Sites
		if beaconSite != "" {
			site, ok := sites.Lookup(beaconSite)
			if !ok {
				return eris.Errorf("beacons: unknown deployment %q (known: %v)", beaconSite, sites.Names())
			}
			sites = model.Sites{site}
		}

		features, err := env.Beacons.Features(sites)
		if err != nil {
			return eris.Wrap(err, "beacons: generate")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		return enc.Encode(&geojson.FeatureCollection{Features: features})
	},
}

func init() {
	beaconsCmd.Flags().StringVar(&beaconSite, "site", "", "only this deployment, by name")
	rootCmd.AddCommand(beaconsCmd)
}
