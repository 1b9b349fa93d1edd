package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wbrown/janus-rdf/rdf/storage"
)

func main() {
	configType := flag.String("config", "default", "Config type: default, medium, or large")
	output := flag.String("output", "", "Override the database directory")
	flag.Parse()

	var config storage.TestDataConfig
	switch *configType {
	case "default":
		config = storage.DefaultFOAFConfig()
	case "medium":
		config = storage.MediumFOAFConfig()
	case "large":
		config = storage.LargeFOAFConfig()
	default:
		fmt.Fprintf(os.Stderr, "Unknown config type: %s (use 'default', 'medium', or 'large')\n", *configType)
		os.Exit(1)
	}
	if *output != "" {
		config.OutputPath = *output
	}
	config.Progress = os.Stdout

	fmt.Printf("Building test database: %s\n", config.OutputPath)
	fmt.Printf("  People: %d\n", config.NumPeople)
	fmt.Printf("  Knows/person: %d\n", config.KnowsPerPerson)
	fmt.Printf("  Graphs: %d\n", config.NumGraphs)
	fmt.Println()

	db, err := storage.BuildTestDatabase(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Statements: %d\n", stats.Statements)
	fmt.Printf("  Nodes: %d\n", stats.NodeHighWater)
	fmt.Printf("  Version: %d\n", stats.VisibleVersion)

	fmt.Println("\nDone. Inspect it with:")
	fmt.Printf("   rdfstore --db %s stats\n", config.OutputPath)
}
