// Command hvptool inspects and extracts HVP archives (the container format
// used by Obscure 1/2 and Final Exam).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	hvp "github.com/obscure-tools/hvparchive"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "rebuild":
		err = runRebuild(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <list|extract|rebuild> [flags] <archive>\n", os.Args[0])
}

func openArchive(archivePath, namesPath string, skipCompression bool) (*hvp.Provider, *hvp.Archive, error) {
	p, err := hvp.Open(nil, archivePath, hvp.VariantUnknown)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", archivePath, err)
	}

	var nameMap *hvp.NameMap
	if namesPath != "" {
		names, err := loadNames(namesPath)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
		nameMap, err = hvp.NewNameMap(names)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
	}

	a, err := hvp.NewArchive(p, hvp.Options{NameMap: nameMap, SkipCompression: skipCompression})
	if err != nil {
		p.Close()
		return nil, nil, fmt.Errorf("map %s: %w", archivePath, err)
	}
	return p, a, nil
}

func loadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names dictionary %s: %w", path, err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names, sc.Err()
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	names := fs.String("names", "", "path to a Variant B name dictionary (one name per line)")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("list: archive path required")
	}

	p, a, err := openArchive(fs.Arg(0), *names, false)
	if err != nil {
		return err
	}
	defer p.Close()

	meta := a.Metadata()
	fmt.Printf("variant=%s dirs=%d files=%d\n", meta.Variant, meta.DirCount, meta.FileCount)

	it := a.Files()
	for {
		fe, ok := it.Next()
		if !ok {
			break
		}
		tag := " "
		if fe.Entry.Compressed {
			tag = "c"
		}
		fmt.Printf("%s %10d %10d  %s\n", tag, fe.Entry.UncompressedSize, fe.Entry.CompressedSize, fe.Path)
	}
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	names := fs.String("names", "", "path to a Variant B name dictionary (one name per line)")
	outDir := fs.String("out", ".", "output directory")
	workers := fs.Int("workers", 4, "parallel extraction workers")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("extract: archive path required")
	}

	p, a, err := openArchive(fs.Arg(0), *names, false)
	if err != nil {
		return err
	}
	defer p.Close()

	files := a.Files().All()

	jobs := make(chan hvp.FullFileEntry)
	var wg sync.WaitGroup
	errs := make(chan error, *workers)

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for fe := range jobs {
				if err := extractOne(p, *outDir, fe); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	for _, fe := range files {
		jobs <- fe
	}
	close(jobs)
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

func extractOne(p *hvp.Provider, outDir string, fe hvp.FullFileEntry) error {
	outPath := filepath.Join(outDir, filepath.FromSlash(fe.Path))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", fe.Path, err)
	}
	data, err := hvp.DecodePayload(p, fe.Entry)
	if err != nil {
		return fmt.Errorf("decode %s: %w", fe.Path, err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

// replaceFlags collects repeated "-replace archive/path=local/path" flags
// into an ordered list, so a single rebuild invocation can queue updates for
// several entries at once.
type replaceFlags []string

func (r *replaceFlags) String() string { return fmt.Sprint([]string(*r)) }
func (r *replaceFlags) Set(s string) error {
	*r = append(*r, s)
	return nil
}

func runRebuild(args []string) error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	names := fs.String("names", "", "path to a Variant B name dictionary (one name per line)")
	out := fs.String("out", "", "output archive path")
	skipCompression := fs.Bool("skip-compression", false, "store updated payloads uncompressed")
	var replace replaceFlags
	fs.Var(&replace, "replace", "archive/path=local/path, may be repeated, replaces a file's payload from disk")
	fs.Parse(args)
	if fs.NArg() < 1 || *out == "" {
		return fmt.Errorf("rebuild: archive path and -out required")
	}

	p, a, err := openArchive(fs.Arg(0), *names, *skipCompression)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := applyReplacements(a, replace); err != nil {
		return err
	}

	outF, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer outF.Close()

	return a.Rebuild(outF, consoleProgress{})
}

func applyReplacements(a *hvp.Archive, replace replaceFlags) error {
	if len(replace) == 0 {
		return nil
	}
	byPath := make(map[string]*hvp.FileEntry)
	for _, fe := range a.FilesMut().All() {
		byPath[fe.Path] = fe.Entry
	}
	for _, r := range replace {
		archivePath, localPath, ok := strings.Cut(r, "=")
		if !ok {
			return fmt.Errorf("rebuild: -replace %q: want archive/path=local/path", r)
		}
		fe, ok := byPath[archivePath]
		if !ok {
			return fmt.Errorf("rebuild: -replace: %s not found in archive", archivePath)
		}
		fe.SetUpdatePath(localPath)
	}
	return nil
}

type consoleProgress struct{}

func (consoleProgress) Inc(msg string)         { fmt.Println(msg) }
func (consoleProgress) IncN(n int, msg string) { fmt.Println(msg) }
