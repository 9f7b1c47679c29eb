//
// Copyright (c) 2021-2024 The flashkit authors
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package main

import (
	goflag "flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/openfw/flashkit"
	"github.com/openfw/flashkit/cli/ourutil"
	"github.com/openfw/flashkit/common/pflagenv"
	"github.com/openfw/flashkit/version"
)

const envPrefix = "FLASHKIT_"

var (
	programmer = flag.StringP("programmer", "p", "",
		`Programmer to use, with optional parameters ("dummy:bus=spi,emulate=W25Q128.V")`)
	chipName   = flag.StringP("chip", "c", "", "Probe only for the chip with this name")
	layoutFile = flag.StringP("layout", "l", "", "Read the layout from this file")
	useIFD     = flag.Bool("ifd", false, "Read the layout from the Intel flash descriptor on the chip")
	useFmap    = flag.Bool("fmap", false, "Read the layout from the flashmap on the chip")
	include    = flag.StringArrayP("include", "i", nil,
		"Only operate on this layout region (may be repeated)")
	wpRange = flag.String("wp-range", "",
		`Protection range for wp-enable, as "start,length" (hex or decimal)`)
	noVerify = flag.BoolP("noverify", "n", false, "Don't verify after writing")
	force    = flag.BoolP("force", "f", false, "Don't ask for confirmation")

	versionFlag = flag.Bool("version", false, "Print version and exit")
)

type handler func(f *flashkit.FlashCtx) error

type command struct {
	name    string
	handler handler
	short   string
}

var commands = []command{
	{"probe", cmdProbe, "Probe for a flash chip and print what was found"},
	{"read", cmdRead, "Read the flash chip into <file>"},
	{"write", cmdWrite, "Write <file> to the flash chip"},
	{"verify", cmdVerify, "Verify the flash chip against <file>"},
	{"erase", cmdErase, "Erase the flash chip"},
	{"wp-status", cmdWPStatus, "Print the write protection state"},
	{"wp-list", cmdWPList, "List the protection ranges the chip supports"},
	{"wp-enable", cmdWPEnable, "Protect the range given with --wp-range"},
	{"wp-disable", cmdWPDisable, "Disable write protection"},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command> [file]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.short)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n%s", flag.CommandLine.FlagUsages())
	os.Exit(2)
}

// logSink relays engine diagnostics to the terminal. Errors and warnings
// are colored; debug and below go to glog only, where -v selects them.
func logSink(level flashkit.LogLevel, message string) int {
	switch level {
	case flashkit.MsgError:
		color.New(color.FgRed).Fprint(os.Stderr, message)
		fmt.Fprintln(os.Stderr)
	case flashkit.MsgWarn:
		color.New(color.FgYellow).Fprint(os.Stderr, message)
		fmt.Fprintln(os.Stderr)
	case flashkit.MsgInfo:
		fmt.Fprintln(os.Stderr, message)
	default:
		glog.V(glog.Level(level)-2).Info(message)
	}
	return 0
}

func splitProgrammer(s string) (name, params string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func openFlash() (*flashkit.Programmer, *flashkit.FlashCtx, error) {
	if *programmer == "" {
		return nil, nil, errors.Errorf("no programmer given, use --programmer")
	}
	name, params := splitProgrammer(*programmer)
	p, ret := flashkit.ProgrammerInit(name, params)
	if ret != 0 {
		return nil, nil, errors.Errorf("programmer %q failed to initialize", name)
	}
	f, ret := flashkit.FlashProbe(p, *chipName)
	switch ret {
	case 0:
	case 2:
		flashkit.ProgrammerShutdown(p)
		return nil, nil, errors.Errorf("no flash chip found")
	case 3:
		flashkit.ProgrammerShutdown(p)
		return nil, nil, errors.Errorf("multiple chips match, narrow the probe down with --chip")
	default:
		flashkit.ProgrammerShutdown(p)
		return nil, nil, errors.Errorf("probing failed (%d)", ret)
	}
	return p, f, nil
}

// setupLayout builds the layout the flags ask for, attaches it and marks
// the included regions.
func setupLayout(f *flashkit.FlashCtx) (*flashkit.Layout, error) {
	var l *flashkit.Layout
	var ret int
	switch {
	case *layoutFile != "":
		var err error
		if l, err = loadLayoutFile(*layoutFile); err != nil {
			return nil, errors.Annotatef(err, "%s", *layoutFile)
		}
	case *useIFD:
		if l, ret = flashkit.LayoutReadFromIFD(f, nil); ret != 0 {
			return nil, errors.Errorf("reading the flash descriptor failed (%d)", ret)
		}
	case *useFmap:
		if l, ret = flashkit.LayoutReadFmapFromROM(f, 0, flashkit.FlashGetsize(f)); ret != 0 {
			return nil, errors.Errorf("reading the flashmap failed (%d)", ret)
		}
	default:
		if len(*include) > 0 {
			return nil, errors.Errorf("--include needs a layout, give --layout, --ifd or --fmap")
		}
		return nil, nil
	}
	for _, name := range *include {
		if flashkit.LayoutIncludeRegion(l, name) != 0 {
			flashkit.LayoutRelease(l)
			return nil, errors.Errorf("no layout region named %q", name)
		}
	}
	flashkit.LayoutSet(f, l)
	return l, nil
}

func argFile() (string, error) {
	if flag.Arg(1) == "" {
		return "", errors.Errorf("command %s needs a file argument", flag.Arg(0))
	}
	return flag.Arg(1), nil
}

func cmdProbe(f *flashkit.FlashCtx) error {
	// Probing already happened; FlashProbe reported the chip. Add the size.
	ourutil.Reportf("Chip size: %d KiB", flashkit.FlashGetsize(f)/1024)
	return nil
}

func cmdRead(f *flashkit.FlashCtx) error {
	path, err := argFile()
	if err != nil {
		return errors.Trace(err)
	}
	buf := make([]byte, flashkit.FlashGetsize(f))
	if ret := flashkit.ImageRead(f, buf); ret != 0 {
		return errors.Errorf("reading the chip failed")
	}
	if err := ioutil.WriteFile(path, buf, 0644); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Read %d bytes into %s", len(buf), path)
	return nil
}

// loadImage reads an image file and checks it against the chip size.
func loadImage(f *flashkit.FlashCtx, path string) ([]byte, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if uint(len(buf)) != flashkit.FlashGetsize(f) {
		return nil, errors.Errorf("image size %d does not match chip size %d",
			len(buf), flashkit.FlashGetsize(f))
	}
	return buf, nil
}

func cmdWrite(f *flashkit.FlashCtx) error {
	path, err := argFile()
	if err != nil {
		return errors.Trace(err)
	}
	buf, err := loadImage(f, path)
	if err != nil {
		return errors.Trace(err)
	}
	flashkit.FlagSet(f, flashkit.FlagVerifyAfterWrite, !*noVerify)

	// Read first so unchanged parts of the chip are skipped.
	ref := make([]byte, len(buf))
	if ret := flashkit.ImageRead(f, ref); ret != 0 {
		glog.Warning("pre-write read failed, writing everything")
		ref = nil
	}
	if ret := flashkit.ImageWrite(f, buf, ref); ret != 0 {
		return errors.Errorf("writing the chip failed")
	}
	color.New(color.FgGreen).Fprintln(os.Stderr, "Write OK")
	return nil
}

func cmdVerify(f *flashkit.FlashCtx) error {
	path, err := argFile()
	if err != nil {
		return errors.Trace(err)
	}
	buf, err := loadImage(f, path)
	if err != nil {
		return errors.Trace(err)
	}
	if ret := flashkit.ImageVerify(f, buf); ret != 0 {
		return errors.Errorf("chip contents do not match %s", path)
	}
	color.New(color.FgGreen).Fprintln(os.Stderr, "Verify OK")
	return nil
}

func cmdErase(f *flashkit.FlashCtx) error {
	if !*force && len(*include) == 0 {
		if ourutil.Prompt("Erase the entire chip? (y/n)") != "y" {
			return errors.Errorf("aborted")
		}
	}
	if ret := flashkit.FlashErase(f); ret != 0 {
		return errors.Errorf("erasing the chip failed")
	}
	return nil
}

func run() error {
	name := flag.Arg(0)
	if name == "" {
		usage()
	}
	var cmd *command
	for j := range commands {
		if commands[j].name == name {
			cmd = &commands[j]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", name)
		usage()
	}

	flashkit.SetLogCallback(logSink)
	defer flashkit.SetLogCallback(nil)
	if flashkit.Init(true) != 0 {
		return errors.Errorf("library self-check failed")
	}
	defer flashkit.Shutdown()

	p, f, err := openFlash()
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		flashkit.FlashRelease(f)
		flashkit.ProgrammerShutdown(p)
	}()

	l, err := setupLayout(f)
	if err != nil {
		return errors.Trace(err)
	}
	if l != nil {
		defer flashkit.LayoutRelease(l)
	}

	return errors.Trace(cmd.handler(f))
}

func main() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Usage = usage
	flag.Parse()
	pflagenv.Parse(envPrefix)

	if *versionFlag {
		fmt.Printf("flashkit\nVersion: %s\nBuild ID: %s\n", version.GetVersion(), version.BuildId)
		return
	}

	if err := run(); err != nil {
		glog.Infof("Error: %+v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
