// Command tinybase is an interactive shell over the index engine. It
// takes a database directory (created with dbcreate) and lets you
// create, populate, scan, and destroy indexes in it.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"tinybase/internal/ix"
	"tinybase/internal/pf"
	"tinybase/internal/rm"
)

type shell struct {
	ixm *ix.Manager

	// at most one index open at a time, like the original shell
	handle   *ix.IndexHandle
	fileName string
	indexNo  int
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s dbname\n", os.Args[0])
		os.Exit(1)
	}
	dbname := os.Args[1]

	info, err := os.Stat(dbname)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "%s: database %s not found (run dbcreate first)\n", os.Args[0], dbname)
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	dbfs := afero.NewBasePathFs(afero.NewOsFs(), dbname)
	pfm := pf.NewManager(dbfs, log)
	sh := &shell{ixm: ix.NewManager(pfm, log)}

	rl, err := readline.New("tinybase> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("TinyBase index shell. Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			break
		}
		if err := sh.dispatch(fields); err != nil {
			fmt.Println("error:", err)
		}
	}

	if sh.handle != nil {
		_ = sh.ixm.CloseIndex(sh.handle)
	}
}

func (sh *shell) dispatch(fields []string) error {
	switch fields[0] {
	case "help":
		printHelp()
		return nil
	case "create":
		return sh.cmdCreate(fields[1:])
	case "destroy":
		return sh.cmdDestroy(fields[1:])
	case "open":
		return sh.cmdOpen(fields[1:])
	case "close":
		return sh.cmdClose()
	case "resolve":
		return sh.cmdResolve(fields[1:])
	case "insert":
		return sh.cmdInsert(fields[1:])
	case "delete":
		return sh.cmdDelete(fields[1:])
	case "scan":
		return sh.cmdScan(fields[1:])
	case "force":
		return sh.cmdForce()
	default:
		return fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}
}

func printHelp() {
	fmt.Print(`Commands:
  create <file> <indexNo> <int|float|string> [length]
  destroy <file> <indexNo>
  open <file> <indexNo>
  close
  resolve <file> <indexNo>       locate the index file (legacy names too)
  insert <key> <page> <slot>
  delete <key> <page> <slot>
  scan <all|==|<|>|<=|>=|!=> [key]
  force                          flush dirty pages
  exit
`)
}

func (sh *shell) cmdCreate(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: create <file> <indexNo> <int|float|string> [length]")
	}
	indexNo, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad index number %q", args[1])
	}
	var attrType ix.AttrType
	attrLength := 4
	switch strings.ToLower(args[2]) {
	case "int":
		attrType = ix.Int
	case "float":
		attrType = ix.Float
	case "string":
		attrType = ix.String
		if len(args) < 4 {
			return errors.New("string index needs a length")
		}
		attrLength, err = strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("bad length %q", args[3])
		}
	default:
		return fmt.Errorf("unknown attribute type %q", args[2])
	}
	return sh.ixm.CreateIndex(args[0], indexNo, attrType, attrLength)
}

func (sh *shell) cmdDestroy(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: destroy <file> <indexNo>")
	}
	indexNo, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad index number %q", args[1])
	}
	return sh.ixm.DestroyIndex(args[0], indexNo)
}

func (sh *shell) cmdOpen(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: open <file> <indexNo>")
	}
	if sh.handle != nil {
		return errors.New("an index is already open; close it first")
	}
	indexNo, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad index number %q", args[1])
	}
	h, err := sh.ixm.OpenIndex(args[0], indexNo)
	if err != nil {
		return err
	}
	sh.handle = h
	sh.fileName = args[0]
	sh.indexNo = indexNo
	fmt.Printf("opened %s (%s, %d bytes per key)\n",
		ix.IndexFileName(args[0], indexNo), h.AttrType(), h.AttrLength())
	return nil
}

func (sh *shell) cmdClose() error {
	if sh.handle == nil {
		return errors.New("no index open")
	}
	if err := sh.ixm.CloseIndex(sh.handle); err != nil {
		return err
	}
	fmt.Printf("closed %s\n", ix.IndexFileName(sh.fileName, sh.indexNo))
	sh.handle = nil
	return nil
}

func (sh *shell) cmdResolve(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: resolve <file> <indexNo>")
	}
	indexNo, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad index number %q", args[1])
	}
	name, err := sh.ixm.ResolveIndexFile(args[0], indexNo)
	if err != nil {
		return err
	}
	fmt.Println(name)
	return nil
}

func (sh *shell) parseKey(s string) ([]byte, error) {
	switch sh.handle.AttrType() {
	case ix.Int:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad int key %q", s)
		}
		return ix.IntKey(int32(v)), nil
	case ix.Float:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("bad float key %q", s)
		}
		return ix.FloatKey(float32(v)), nil
	default:
		return ix.StringKey(s, sh.handle.AttrLength()), nil
	}
}

func (sh *shell) parseEntry(args []string) ([]byte, rm.RID, error) {
	if len(args) != 3 {
		return nil, rm.NullRID, errors.New("usage: <key> <page> <slot>")
	}
	key, err := sh.parseKey(args[0])
	if err != nil {
		return nil, rm.NullRID, err
	}
	page, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return nil, rm.NullRID, fmt.Errorf("bad page %q", args[1])
	}
	slot, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		return nil, rm.NullRID, fmt.Errorf("bad slot %q", args[2])
	}
	return key, rm.NewRID(pf.PageNum(page), pf.SlotNum(slot)), nil
}

func (sh *shell) cmdInsert(args []string) error {
	if sh.handle == nil {
		return errors.New("no index open")
	}
	key, rid, err := sh.parseEntry(args)
	if err != nil {
		return err
	}
	return sh.handle.InsertEntry(key, rid)
}

func (sh *shell) cmdDelete(args []string) error {
	if sh.handle == nil {
		return errors.New("no index open")
	}
	key, rid, err := sh.parseEntry(args)
	if err != nil {
		return err
	}
	return sh.handle.DeleteEntry(key, rid)
}

var compOps = map[string]ix.CompOp{
	"all": ix.NoOp,
	"==":  ix.EQ,
	"<":   ix.LT,
	">":   ix.GT,
	"<=":  ix.LE,
	">=":  ix.GE,
	"!=":  ix.NE,
}

func (sh *shell) cmdScan(args []string) error {
	if sh.handle == nil {
		return errors.New("no index open")
	}
	if len(args) < 1 {
		return errors.New("usage: scan <all|==|<|>|<=|>=|!=> [key]")
	}
	op, ok := compOps[args[0]]
	if !ok {
		return fmt.Errorf("unknown operator %q", args[0])
	}
	var key []byte
	if op != ix.NoOp {
		if len(args) != 2 {
			return errors.New("operator needs a key")
		}
		var err error
		if key, err = sh.parseKey(args[1]); err != nil {
			return err
		}
	}

	var scan ix.IndexScan
	if err := scan.OpenScan(sh.handle, op, key); err != nil {
		return err
	}
	defer scan.CloseScan()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "RID page", "RID slot"})
	count := 0
	for {
		rid, err := scan.GetNextEntry()
		if errors.Is(err, ix.ErrEOF) {
			break
		}
		if err != nil {
			return err
		}
		count++
		table.Append([]string{
			strconv.Itoa(count),
			strconv.FormatInt(int64(rid.Page), 10),
			strconv.FormatInt(int64(rid.Slot), 10),
		})
	}
	table.Render()
	fmt.Printf("%d entries\n", count)
	return nil
}

func (sh *shell) cmdForce() error {
	if sh.handle == nil {
		return errors.New("no index open")
	}
	return sh.handle.ForcePages()
}
