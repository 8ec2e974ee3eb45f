// fetchspecies is a one-shot batch tool. It pulls the eBird taxonomy,
// intersects it with a regional species list, and writes the result as a
// static JSON file consumed by the front-end species picker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"

	"birdwatch/internal/platform/config"
	"birdwatch/internal/platform/ebird"

	"github.com/gosimple/slug"
)

type speciesEntry struct {
	Code       string `json:"code"`
	CommonName string `json:"commonName"`
	SciName    string `json:"sciName"`
	Slug       string `json:"slug"`
}

func main() {
	region := flag.String("region", "CA", "region code for the species list")
	locale := flag.String("locale", "en_CA", "locale for common names")
	out := flag.String("out", "static/species.json", "output file path")
	flag.Parse()

	config.Load()
	if config.AppConfig.EBirdAPIKey == "" {
		log.Fatal("EBIRD_API_KEY not found in environment variables")
	}

	client := ebird.NewHTTPClient(ebird.DefaultBaseURL, config.AppConfig.EBirdAPIKey)
	ctx := context.Background()

	log.Printf("Fetching global taxonomy (locale=%s)...", *locale)
	q := url.Values{}
	q.Set("fmt", "json")
	q.Set("locale", *locale)
	var taxonomy []struct {
		SpeciesCode string `json:"speciesCode"`
		ComName     string `json:"comName"`
		SciName     string `json:"sciName"`
	}
	if err := fetchJSON(ctx, client, "/ref/taxonomy/ebird", q, &taxonomy); err != nil {
		log.Fatalf("Error fetching taxonomy: %v", err)
	}
	log.Printf("Fetched %d taxonomy entries.", len(taxonomy))

	log.Printf("Fetching species list for region %s...", *region)
	var codes []string
	if err := fetchJSON(ctx, client, "/product/spplist/"+url.PathEscape(*region), nil, &codes); err != nil {
		log.Fatalf("Error fetching species list: %v", err)
	}
	log.Printf("Fetched %d species codes for %s.", len(codes), *region)

	regional := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		regional[code] = struct{}{}
	}

	filtered := []speciesEntry{}
	for _, sp := range taxonomy {
		if _, ok := regional[sp.SpeciesCode]; !ok {
			continue
		}
		filtered = append(filtered, speciesEntry{
			Code:       sp.SpeciesCode,
			CommonName: sp.ComName,
			SciName:    sp.SciName,
			Slug:       slug.Make(sp.ComName),
		})
	}
	log.Printf("Filtered down to %d species.", len(filtered))

	data, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		log.Fatalf("Error encoding species list: %v", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("Error writing %s: %v", *out, err)
	}
	log.Printf("Saved species list to %s", *out)
}

func fetchJSON(ctx context.Context, client ebird.Client, path string, q url.Values, v interface{}) error {
	resp, err := client.Get(ctx, path, q)
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, resp.Body)
	}
	return json.Unmarshal(resp.Body, v)
}
