// gtest assembles every test source in-process and compares the outcome with
// a JSON golden file stored next to it.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/gasm/pkg/asm"
	"github.com/xplshn/gasm/pkg/config"
	"github.com/xplshn/gasm/pkg/diag"
	"github.com/xplshn/gasm/pkg/symbols"
)

// Outcome is what one assembly produced; goldens store exactly this.
type Outcome struct {
	Hash        string           `json:"hash"`
	Failed      bool             `json:"failed"`
	Diagnostics []string         `json:"diagnostics,omitempty"`
	Symbols     []symbols.Symbol `json:"symbols"`
	Exports     []string         `json:"exports,omitempty"`
	Base        uint32           `json:"base"`
	Image       string           `json:"image"`
}

type FileTestResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	generateGolden = flag.String("generate-golden", "", "Generate golden .json files for the given source files (space-separated).")
	testFiles      = flag.String("test-files", "tests/*.asm", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	flags          = flag.String("flags", "", "Warning/feature switches applied to every assembly, e.g. \"-Wall -Fno-c-esc\".")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *jobs < 1 {
		*jobs = 1
	}

	if *generateGolden != "" {
		for _, f := range strings.Fields(*generateGolden) {
			handleGenerateGolden(f)
		}
		return
	}

	if !handleRunTestSuite() {
		os.Exit(1)
	}
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

func hashBytes(b []byte) string { return fmt.Sprintf("%x", xxhash.Sum64(b)) }

// assemble runs the assembler on one file and captures its outcome.
func assemble(path string) (*Outcome, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := config.NewConfig()
	if err := cfg.ApplyFlags(strings.Fields(*flags)); err != nil {
		return nil, err
	}

	var diagnostics bytes.Buffer
	rep := diag.NewReporter(&diagnostics, cfg)
	name := filepath.Base(path)
	res, err := asm.New(cfg, rep).Assemble([]diag.SourceFile{{Name: name, Content: []rune(string(content))}})
	if err != nil {
		return nil, err
	}

	out := &Outcome{Hash: hashBytes(content), Failed: res.Failed}
	if s := strings.TrimRight(diagnostics.String(), "\n"); s != "" {
		out.Diagnostics = strings.Split(s, "\n")
	}
	for sym := range res.Symbols.All() {
		out.Symbols = append(out.Symbols, sym)
	}
	for _, sym := range res.Exports {
		out.Exports = append(out.Exports, sym.Name)
	}
	base, image := res.Image()
	out.Base, out.Image = base, hex.EncodeToString(image)
	return out, nil
}

func handleGenerateGolden(sourceFile string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)

	outcome, err := assemble(sourceFile)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not assemble %s: %v\n", cRed, cNone, sourceFile, err)
	}

	jsonData, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}

	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	goldenFileName := getJSONPath(sourceFile)
	if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFileName, err)
	}

	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFileName)
}

func handleRunTestSuite() bool {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return true
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		fileHash := hashBytes(content)
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(os.Stdout, allResults)
	writeJSONReport(allResults)
	return !hasFailures(allResults)
}

func testFile(file string) *FileTestResult {
	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
	}
	var golden Outcome
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	got, err := assemble(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	if *verbose {
		log.Printf("[%s] assembled: %d symbols, failed=%v", file, len(got.Symbols), got.Failed)
	}
	return compareOutcomes(file, &golden, got)
}

func compareOutcomes(file string, golden, got *Outcome) *FileTestResult {
	stale := golden.Hash != got.Hash
	if diff := cmp.Diff(golden, got, ignoreHash()); diff != "" {
		msg := "Outcome differs from golden file"
		if stale {
			msg += " (source changed since the golden was generated)"
		}
		return &FileTestResult{File: file, Status: "FAIL", Message: msg, Diff: diff}
	}
	if stale {
		return &FileTestResult{File: file, Status: "PASS", Message: "Matches golden file, but its hash is stale"}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "Matches golden file"}
}

func ignoreHash() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Hash"
	}, cmp.Ignore())
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

func printSummary(w io.Writer, results []*FileTestResult) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
		color := cGreen
		switch r.Status {
		case "FAIL", "ERROR":
			color = cRed
		case "SKIP":
			color = cYellow
		}
		fmt.Fprintf(w, "%s[%s]%s %s: %s\n", color, r.Status, cNone, r.File, r.Message)
		if r.Diff != "" {
			fmt.Fprintf(w, "%s%s%s\n", cCyan, r.Diff, cNone)
		}
	}
	fmt.Fprintf(w, "\n%s%d passed, %d failed, %d errors, %d skipped%s\n",
		cBold, counts["PASS"], counts["FAIL"], counts["ERROR"], counts["SKIP"], cNone)
}

func writeJSONReport(results []*FileTestResult) {
	report := make(map[string]*FileTestResult, len(results))
	for _, r := range results {
		report[r.File] = r
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("%s[WARN]%s Could not marshal test report: %v\n", cYellow, cNone, err)
		return
	}
	outputFile := *outputJSON
	if *jsonDir != "" {
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		log.Printf("%s[WARN]%s Could not write test report %s: %v\n", cYellow, cNone, outputFile, err)
	}
}

func hasFailures(results []*FileTestResult) bool {
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			return true
		}
	}
	return false
}
