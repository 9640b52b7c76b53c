package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/tanglehq/tangle/internal/backup"
	"github.com/tanglehq/tangle/internal/config"
	"github.com/tanglehq/tangle/internal/tools"
	"github.com/tanglehq/tangle/pkg/tangle"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	args = args[1:]

	// init only touches the config file, not the stores.
	if cmd == "init" {
		handleInit()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	tg, err := tangle.Open(ctx, *cfg)
	if err != nil {
		log.Fatalf("Error opening tangle: %v", err)
	}
	defer tg.Close(ctx)

	switch cmd {
	case "new":
		handleNew(ctx, tg, args)

	case "add":
		if len(args) < 1 {
			log.Fatal("Usage: tangle add <text> [-key k] [-tags a,b]")
		}
		handleAdd(ctx, tg, args)

	case "show":
		if len(args) < 1 {
			log.Fatal("Usage: tangle show <id>")
		}
		handleShow(ctx, tg, parseID(args[0]))

	case "delete":
		if len(args) < 1 {
			log.Fatal("Usage: tangle delete <id>")
		}
		handleDelete(ctx, tg, parseID(args[0]))

	case "list":
		handleList(ctx, tg, args)

	case "search":
		if len(args) < 1 {
			log.Fatal("Usage: tangle search <query>")
		}
		handleSearch(ctx, tg, strings.Join(args, " "))

	case "tags":
		handleTags(ctx, tg)

	case "analyze":
		if len(args) < 1 {
			log.Fatal("Usage: tangle analyze <id>")
		}
		handleAnalyze(ctx, tg, parseID(args[0]))

	case "build":
		handleBuild(ctx, tg)

	case "neighbors":
		if len(args) < 2 {
			log.Fatal("Usage: tangle neighbors <label> <type> [-depth n] [-limit n]")
		}
		handleNeighbors(ctx, tg, args)

	case "path":
		if len(args) < 4 {
			log.Fatal("Usage: tangle path <from-label> <from-type> <to-label> <to-type> [-max-depth n]")
		}
		handlePath(ctx, tg, args)

	case "stats":
		handleStats(ctx, tg)

	case "export":
		if len(args) < 1 {
			log.Fatal("Usage: tangle export <file>")
		}
		handleExport(ctx, tg, args[0])

	case "import":
		if len(args) < 1 {
			log.Fatal("Usage: tangle import <file> [-replace] [-rebuild]")
		}
		handleImport(ctx, tg, args)

	case "tools":
		handleTools(ctx, tg)

	default:
		log.Fatalf("Unknown command: %s", cmd)
	}
}

func usage() {
	fmt.Println("Usage: tangle <command> [args...]")
	fmt.Println("\nCommands:")
	fmt.Println("  init                                    Write a default config file")
	fmt.Println("  new [-key k] [-tags a,b]                Compose a note in the editor")
	fmt.Println("  add <text> [-key k] [-tags a,b]         Add a note from the command line")
	fmt.Println("  show <id>                               Show a note")
	fmt.Println("  delete <id>                             Delete a note")
	fmt.Println("  list [-limit n] [-offset n]             List notes, newest first")
	fmt.Println("  search <query>                          Full-text search")
	fmt.Println("  tags                                    List tags by usage")
	fmt.Println("  analyze <id>                            Keywords, sentiment, entities")
	fmt.Println("  build                                   Rebuild the knowledge graph")
	fmt.Println("  neighbors <label> <type>                List reachable nodes")
	fmt.Println("  path <from-l> <from-t> <to-l> <to-t>    Shortest path between nodes")
	fmt.Println("  stats                                   Graph totals")
	fmt.Println("  export <file>                           Write a JSON archive")
	fmt.Println("  import <file> [-replace] [-rebuild]     Restore from an archive")
	fmt.Println("  tools                                   Serve the tool catalog on stdio")
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Fatalf("Invalid note id: %s", raw)
	}
	return id
}

// noteFlags extracts -key and -tags from the tail of a command's arguments
// and returns the remaining positional words.
func noteFlags(args []string) (positional []string, key string, tags []string) {
	fs := flag.NewFlagSet("note", flag.ExitOnError)
	keyFlag := fs.String("key", "", "topic key")
	tagsFlag := fs.String("tags", "", "comma-separated tags")

	var rest []string
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			fs.Parse(args[i:])
			break
		}
		rest = append(rest, arg)
	}

	if *tagsFlag != "" {
		for _, tag := range strings.Split(*tagsFlag, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return rest, *keyFlag, tags
}

func handleInit() {
	path := config.Path()
	if _, err := os.Stat(path); err == nil {
		log.Fatalf("Config already exists at %s", path)
	}
	if err := config.Save(config.Default()); err != nil {
		log.Fatalf("Error writing config: %v", err)
	}
	fmt.Printf("Wrote %s\n", path)
}

func handleNew(ctx context.Context, tg *tangle.Tangle, args []string) {
	_, key, tags := noteFlags(args)

	content, err := newEditor().Run()
	if err != nil {
		log.Fatalf("Editor error: %v", err)
	}
	if strings.TrimSpace(content) == "" {
		fmt.Println("Aborted, empty note")
		return
	}

	n, err := tg.CreateNote(ctx, content, key, tags)
	if err != nil {
		log.Fatalf("Error creating note: %v", err)
	}
	fmt.Printf("Created note %d\n", n.ID)
}

func handleAdd(ctx context.Context, tg *tangle.Tangle, args []string) {
	words, key, tags := noteFlags(args)
	content := strings.Join(words, " ")

	n, err := tg.CreateNote(ctx, content, key, tags)
	if err != nil {
		log.Fatalf("Error creating note: %v", err)
	}
	fmt.Printf("Created note %d\n", n.ID)
}

func handleShow(ctx context.Context, tg *tangle.Tangle, id int64) {
	n, err := tg.GetNote(ctx, id)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Note %d", n.ID)
	if n.Key != "" {
		fmt.Printf("  [%s]", n.Key)
	}
	fmt.Println()
	if len(n.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(n.Tags, ", "))
	}
	fmt.Printf("Created: %s\n\n", n.Created.Format("2006-01-02 15:04"))
	fmt.Println(n.Content)
}

func handleDelete(ctx context.Context, tg *tangle.Tangle, id int64) {
	if err := tg.DeleteNote(ctx, id); err != nil {
		log.Fatalf("Error deleting note: %v", err)
	}
	fmt.Printf("Deleted note %d\n", id)
}

func handleList(ctx context.Context, tg *tangle.Tangle, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum notes to show")
	offset := fs.Int("offset", 0, "notes to skip")
	fs.Parse(args)

	list, err := tg.ListNotes(ctx, *limit, *offset)
	if err != nil {
		log.Fatalf("Error listing notes: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No notes")
		return
	}
	for _, n := range list {
		printNoteLine(n.ID, n.Key, n.Content)
	}
}

func handleSearch(ctx context.Context, tg *tangle.Tangle, query string) {
	hits, err := tg.SearchNotes(ctx, query, 20)
	if err != nil {
		log.Fatalf("Error searching: %v", err)
	}
	if len(hits) == 0 {
		fmt.Println("No matches")
		return
	}
	for _, n := range hits {
		printNoteLine(n.ID, n.Key, n.Content)
	}
}

func printNoteLine(id int64, key, content string) {
	summary := content
	if idx := strings.IndexByte(summary, '\n'); idx >= 0 {
		summary = summary[:idx]
	}
	if len(summary) > 72 {
		summary = summary[:72] + "..."
	}
	if key != "" {
		fmt.Printf("%4d  [%s] %s\n", id, key, summary)
	} else {
		fmt.Printf("%4d  %s\n", id, summary)
	}
}

func handleTags(ctx context.Context, tg *tangle.Tangle) {
	counts, err := tg.TagCounts(ctx)
	if err != nil {
		log.Fatalf("Error listing tags: %v", err)
	}
	if len(counts) == 0 {
		fmt.Println("No tags")
		return
	}
	for _, tc := range counts {
		fmt.Printf("%4d  %s\n", tc.Count, tc.Tag)
	}
}

func handleAnalyze(ctx context.Context, tg *tangle.Tangle, id int64) {
	report, err := tg.AnalyzeNote(ctx, id, 5)
	if err != nil {
		log.Fatalf("Error analyzing note: %v", err)
	}

	fmt.Printf("Sentiment: %s (%.2f)\n", report.Sentiment.Label, report.Sentiment.Score)
	if len(report.Keywords) > 0 {
		var words []string
		for _, kw := range report.Keywords {
			words = append(words, fmt.Sprintf("%s (%d)", kw.Word, kw.Count))
		}
		fmt.Printf("Keywords:  %s\n", strings.Join(words, ", "))
	}
	for _, ent := range report.Entities {
		fmt.Printf("Entity:    %s [%s]\n", ent.Text, ent.Kind)
	}
}

func handleBuild(ctx context.Context, tg *tangle.Tangle) {
	st, err := tg.BuildGraph(ctx)
	if err != nil {
		log.Fatalf("Error building graph: %v", err)
	}
	fmt.Printf("Graph: %d nodes, %d edges\n", st.Nodes, st.Edges)
}

func handleNeighbors(ctx context.Context, tg *tangle.Tangle, args []string) {
	label, typ := args[0], args[1]

	fs := flag.NewFlagSet("neighbors", flag.ExitOnError)
	depth := fs.Int("depth", 0, "hop bound")
	limit := fs.Int("limit", 0, "maximum nodes")
	fs.Parse(args[2:])

	nodes, err := tg.Neighbors(ctx, label, typ, *depth, *limit)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(nodes) == 0 {
		fmt.Println("No neighbors")
		return
	}
	for _, n := range nodes {
		fmt.Printf("%4d  %s/%s\n", n.ID, n.Label, n.Type)
	}
}

func handlePath(ctx context.Context, tg *tangle.Tangle, args []string) {
	fs := flag.NewFlagSet("path", flag.ExitOnError)
	maxDepth := fs.Int("max-depth", 0, "hop bound")
	fs.Parse(args[4:])

	path, err := tg.Path(ctx, args[0], args[1], args[2], args[3], *maxDepth)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(path) == 0 {
		fmt.Println("No path found")
		return
	}

	var hops []string
	for _, n := range path {
		hops = append(hops, fmt.Sprintf("%s/%s", n.Label, n.Type))
	}
	fmt.Printf("%s  (%d hops)\n", strings.Join(hops, " -> "), len(path)-1)
}

func handleStats(ctx context.Context, tg *tangle.Tangle) {
	st, err := tg.GraphStats(ctx)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("Nodes: %d\nEdges: %d\n", st.Nodes, st.Edges)
}

func handleExport(ctx context.Context, tg *tangle.Tangle, path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Error creating archive: %v", err)
	}
	defer f.Close()

	manifest, err := tg.Export(ctx, f)
	if err != nil {
		log.Fatalf("Error exporting: %v", err)
	}
	fmt.Printf("Exported %d notes to %s\n", manifest.Notes, path)
}

func handleImport(ctx context.Context, tg *tangle.Tangle, args []string) {
	path := args[0]

	fs := flag.NewFlagSet("import", flag.ExitOnError)
	replace := fs.Bool("replace", false, "overwrite conflicting notes")
	rebuild := fs.Bool("rebuild", false, "rebuild the graph after restoring")
	fs.Parse(args[1:])

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Error opening archive: %v", err)
	}
	defer f.Close()

	opts := backup.ImportOptions{RebuildGraph: *rebuild}
	if *replace {
		opts.OnConflict = backup.Replace
	}

	result, err := tg.Import(ctx, f, opts)
	if err != nil {
		log.Fatalf("Error importing: %v", err)
	}
	fmt.Printf("Imported %d, skipped %d, replaced %d\n", result.Imported, result.Skipped, result.Replaced)
}

// handleTools serves the tool catalog over stdin/stdout until EOF.
func handleTools(ctx context.Context, tg *tangle.Tangle) {
	registry := tools.NewService(tg.Notes(), tg.Graph(), nil).Registry()
	if err := tools.NewStdio(registry, nil).Serve(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("Tool server error: %v", err)
	}
}
