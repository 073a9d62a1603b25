// Command oxc3pkg packages a directory tree into an oiCA archive. It is a
// thin envelope over archive.FromDir and oica.File.ToBytes: argument
// plumbing and exit codes only, no packaging logic of its own.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/oxsomi/oxc3core/archive"
	"github.com/oxsomi/oxc3core/oica"
)

// Exit codes per the CLI envelope: 0 success, 1 user error, 2 platform init
// failure.
const (
	exitOK             = 0
	exitUserError      = 1
	exitPlatformFailed = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := logrus.StandardLogger()

	if len(args) < 2 || len(args) > 3 {
		log.Error("usage: OxC3_package <input-dir> <output-file> [include-dir]")
		return exitUserError
	}

	inputDir, outputFile := args[0], args[1]
	includeDir := inputDir
	if len(args) == 3 {
		includeDir = args[2]
	}

	if _, err := os.Stat(includeDir); err != nil {
		log.WithError(err).Error("include directory is not accessible")
		return exitPlatformFailed
	}

	ar, err := archive.FromDir(includeDir)
	if err != nil {
		log.WithError(err).Error("failed to walk input directory")
		return exitUserError
	}

	f := &oica.File{Archive: ar, Settings: oica.Settings{UseSHA256: true, IncludeDate: true}}

	data, err := f.ToBytes()
	if err != nil {
		log.WithError(err).Error("failed to package archive")
		return exitUserError
	}

	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		log.WithError(err).Error("failed to write output file")
		return exitPlatformFailed
	}

	log.WithField("entries", len(ar.Entries)).WithField("output", outputFile).Info("packaged archive")
	return exitOK
}
