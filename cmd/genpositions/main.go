package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"lvimport/internal/model"
)

type group struct {
	name  string
	subs  []string
	items []string
}

var groups = []group{
	{"Sanitär", []string{"Trinkwasser", "Abwasser", "Armaturen"}, []string{"Pressfitting-System Rohr", "Kugelhahn mit Außengewinde", "HT-Rohr", "Waschtischarmatur"}},
	{"Heizung", []string{"Wärmeerzeuger", "Heizflächen", "Verteilung"}, []string{"Gas-Brennwertkessel", "Plattenheizkörper Typ 22", "Heizkreisverteiler", "Umwälzpumpe"}},
	{"Lüftung", []string{"Zentralgeräte", "Luftleitungen"}, []string{"Wickelfalzrohr", "Abluftventil", "Brandschutzklappe"}},
}

var units = []string{"Stk", "m", "psch", "m²"}

func main() {
	var count int
	var outputFile string
	var seed int64
	flag.IntVar(&count, "count", 1200, "number of positions to generate")
	flag.StringVar(&outputFile, "output", "lv_positions.json", "output file")
	flag.Int64Var(&seed, "seed", 1, "random seed")
	flag.Parse()

	if err := generatePositions(count, outputFile, rand.New(rand.NewSource(seed))); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func generatePositions(count int, outputFile string, rnd *rand.Rand) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	recs := make([]model.Record, 0, count)
	for i := 0; i < count; i++ {
		g := groups[i%len(groups)]
		item := g.items[rnd.Intn(len(g.items))]
		dn := []int{15, 20, 25, 32, 50}[rnd.Intn(5)]
		menge := float64(1 + rnd.Intn(120))
		preis := math.Round((5+rnd.Float64()*900)*100) / 100
		recs = append(recs, model.Record{
			PositionNr:    fmt.Sprintf("%d.%d.%d", i%len(groups)+1, (i/len(groups))/100+1, (i/len(groups))%100+1),
			Hauptgruppe:   g.name,
			Untergruppe:   g.subs[rnd.Intn(len(g.subs))],
			Kurztext:      fmt.Sprintf("%s DN%d", item, dn),
			Beschreibung:  fmt.Sprintf("%s DN%d liefern und montieren, inkl. Befestigungsmaterial", item, dn),
			Menge:         menge,
			Mengeneinheit: units[rnd.Intn(len(units))],
			Einheitspreis: preis,
			Gesamtbetrag:  math.Round(menge*preis*100) / 100,
			Seite:         i/25 + 1,
		})
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}

	log.Printf("generated %d positions to %s", count, outputFile)
	return nil
}
