// The medsinfo CLI inspects MEDS archives: it prints the catalog, dumps
// cutouts and mosaics and checks archives for inconsistent offsets or
// source ids.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/qri-io/meds"
)

var versionGitCommit string
var versionBuildTime string

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	cfg := defaultConfig()

	app := &cli.App{
		Name:    "medsinfo",
		Usage:   "Inspect MEDS cutout archives",
		Version: fmt.Sprintf("%s.%s", versionGitCommit, versionBuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "", TakesFile: true, Usage: "TOML config file", EnvVars: []string{"MEDSINFO_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			var err error
			if cfg, err = loadConfig(c.String("config")); err != nil {
				return err
			}
			if c.IsSet("log-level") || c.String("config") == "" {
				cfg.LogLevel = c.String("log-level")
			}
			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}

	extFlag := &cli.StringFlag{Name: "ext", Value: "", Usage: "Pixel store to read (image_cutouts, weight_cutouts, seg_cutouts, bmask_cutouts)"}
	digestFlag := &cli.BoolFlag{Name: "digest", Value: false, Usage: "Print the sha256 digest of the pixels"}

	// open applies the config and the --ext flag of the current command
	open := func(c *cli.Context) (*meds.Archive, meds.Extension, error) {
		if c.NArg() < 1 {
			return nil, "", errors.New("archive path is required")
		}
		ext := meds.Extension(cfg.Extension)
		if c.String("ext") != "" {
			ext = meds.Extension(c.String("ext"))
		}
		opts := append(cfg.options(), meds.WithImageExtension(ext))
		a, err := meds.Open(c.Args().Get(0), opts...)
		if err != nil {
			return nil, "", err
		}
		return a, ext, nil
	}

	app.Commands = []*cli.Command{
		{
			Name:      "summary",
			Usage:     "Print archive dimensions",
			ArgsUsage: "ARCHIVE",
			Flags:     []cli.Flag{extFlag},
			Action: func(c *cli.Context) error {
				a, ext, err := open(c)
				if err != nil {
					return err
				}
				defer a.Close()
				return printSummary(c.App.Writer, a, ext)
			},
		},
		{
			Name:      "object",
			Usage:     "Print the catalog record of an object",
			ArgsUsage: "ARCHIVE INDEX",
			Action: func(c *cli.Context) error {
				idx, err := intArgs(c, 1)
				if err != nil {
					return err
				}
				a, _, err := open(c)
				if err != nil {
					return err
				}
				defer a.Close()
				o, err := a.Object(idx[0])
				if err != nil {
					return err
				}
				return printObject(c.App.Writer, o)
			},
		},
		{
			Name:      "images",
			Usage:     "Print the source image table",
			ArgsUsage: "ARCHIVE",
			Action: func(c *cli.Context) error {
				a, _, err := open(c)
				if err != nil {
					return err
				}
				defer a.Close()
				if a.ImageInfo() == nil {
					return errors.Wrap(meds.ErrMissingTable, meds.ImageInfoTableName)
				}
				return printImageInfo(c.App.Writer, a.ImageInfo())
			},
		},
		{
			Name:      "cutout",
			Usage:     "Read one cutout of an object",
			ArgsUsage: "ARCHIVE INDEX CUTOUT",
			Flags: []cli.Flag{
				extFlag,
				digestFlag,
				&cli.BoolFlag{Name: "pixels", Value: false, Usage: "Print pixel values row by row"},
			},
			Action: func(c *cli.Context) error {
				idx, err := intArgs(c, 2)
				if err != nil {
					return err
				}
				a, _, err := open(c)
				if err != nil {
					return err
				}
				defer a.Close()

				v, err := a.Cutout(idx[0], idx[1])
				if err != nil {
					return err
				}
				defer v.Release()
				if name, err := a.SourceFilename(idx[0], idx[1]); err == nil {
					printScalar(c.App.Writer, "source", name)
				} else {
					logrus.WithError(err).Warn("cannot resolve source image")
				}
				return printView(c.App.Writer, v, viewOutput{digest: c.Bool("digest"), pixels: c.Bool("pixels")})
			},
		},
		{
			Name:      "mosaic",
			Usage:     "Read every cutout of an object",
			ArgsUsage: "ARCHIVE INDEX",
			Flags:     []cli.Flag{extFlag, digestFlag},
			Action: func(c *cli.Context) error {
				idx, err := intArgs(c, 1)
				if err != nil {
					return err
				}
				a, _, err := open(c)
				if err != nil {
					return err
				}
				defer a.Close()

				v, err := a.Mosaic(idx[0])
				if err != nil {
					return err
				}
				defer v.Release()
				return printView(c.App.Writer, v, viewOutput{digest: c.Bool("digest")})
			},
		},
		{
			Name:      "verify",
			Usage:     "Check cutout offsets and source ids of every object",
			ArgsUsage: "ARCHIVE",
			Flags:     []cli.Flag{extFlag},
			Action: func(c *cli.Context) error {
				a, ext, err := open(c)
				if err != nil {
					return err
				}
				defer a.Close()

				problems, err := verify(a, ext)
				if err != nil {
					return err
				}
				for _, p := range problems {
					fmt.Fprintln(c.App.Writer, p)
				}
				if len(problems) > 0 {
					return cli.Exit(fmt.Sprintf("%d problems found", len(problems)), 1)
				}
				fmt.Fprintf(c.App.Writer, "ok: %d objects\n", a.Size())
				return nil
			},
		},
	}

	return app
}

// intArgs parses the n integer arguments following the archive path
func intArgs(c *cli.Context, n int) ([]int, error) {
	if c.NArg() != n+1 {
		return nil, fmt.Errorf("expected %d arguments, got %d", n+1, c.NArg())
	}
	vals := make([]int, n)
	for i := range vals {
		v, err := strconv.Atoi(c.Args().Get(i + 1))
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i+2)
		}
		vals[i] = v
	}
	return vals, nil
}

// verify reports non-contiguous objects, unresolvable source ids and
// cutouts past the end of the pixel store
func verify(a *meds.Archive, ext meds.Extension) ([]string, error) {
	var npix int64 = -1
	if zs, ok := a.Source().(*meds.ZarrSource); ok {
		n, err := zs.PixelCount(ext)
		if err != nil {
			return nil, err
		}
		npix = n
	}

	var problems []string
	for i := 0; i < a.Size(); i++ {
		o, err := a.Object(i)
		if err != nil {
			return nil, err
		}
		if err := o.CheckContiguous(); err != nil {
			problems = append(problems, err.Error())
		}
		for c := 0; c < o.NCutout(); c++ {
			if _, err := a.SourceInfo(i, c); err != nil {
				problems = append(problems, fmt.Sprintf("object %d cutout %d: %v", i, c, err))
			}
			ci, err := o.Cutout(c)
			if err != nil {
				return nil, err
			}
			end := ci.StartRow + int64(o.CutoutSize())
			if ci.StartRow < 0 || (npix >= 0 && end > npix) {
				problems = append(problems, fmt.Sprintf("object %d cutout %d: pixels [%d, %d) outside %s of %d pixels", i, c, ci.StartRow, end, ext, npix))
			}
		}
	}
	return problems, nil
}
