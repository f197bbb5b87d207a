package microservices

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/service/tracker"
)

const commandHelp = `commands:
  dest <lat> <lon>   set the destination and draw a route to it
  list               show every known participant
  help               show this message
  quit               leave the session`

var errUnknownCommand = errors.New("unknown command")

type commandKind int

const (
	cmdNone commandKind = iota
	cmdDestination
	cmdList
	cmdHelp
	cmdQuit
)

type command struct {
	kind   commandKind
	target models.Position
}

// sessionControl is the part of tracker.Session driven from the terminal
type sessionControl interface {
	SelectDestination(target models.Position)
	Snapshot(ctx context.Context) (tracker.Snapshot, error)
}

// commandLoop reads commands line by line. It stands in for clicks on a map.
type commandLoop struct {
	in      io.Reader
	out     io.Writer
	session sessionControl
}

func newCommandLoop(in io.Reader, out io.Writer, session sessionControl) *commandLoop {
	return &commandLoop{in: in, out: out, session: session}
}

// run returns true when the user asked to quit, false when input ended or ctx is done
func (l *commandLoop) run(ctx context.Context) bool {
	scanner := bufio.NewScanner(l.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return false
		}

		cmd, err := parseCommand(scanner.Text())
		if err != nil {
			fmt.Fprintf(l.out, "%v\n%s\n", err, commandHelp)
			continue
		}

		switch cmd.kind {
		case cmdDestination:
			l.session.SelectDestination(cmd.target)
			fmt.Fprintf(l.out, "destination set to %.6f, %.6f\n", cmd.target.Latitude, cmd.target.Longitude)
		case cmdList:
			snap, err := l.session.Snapshot(ctx)
			if err != nil {
				fmt.Fprintf(l.out, "session unavailable: %v\n", err)
				continue
			}
			printSnapshot(l.out, snap)
		case cmdHelp:
			fmt.Fprintln(l.out, commandHelp)
		case cmdQuit:
			return true
		}
	}
	return false
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdNone}, nil
	}

	switch strings.ToLower(fields[0]) {
	case "dest", "destination":
		if len(fields) != 3 {
			return command{}, errors.New("usage: dest <lat> <lon>")
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || lat < -90 || lat > 90 {
			return command{}, fmt.Errorf("invalid latitude %q", fields[1])
		}
		lon, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || lon < -180 || lon > 180 {
			return command{}, fmt.Errorf("invalid longitude %q", fields[2])
		}
		return command{kind: cmdDestination, target: models.Position{Latitude: lat, Longitude: lon}}, nil
	case "list", "ls":
		return command{kind: cmdList}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("%w: %q", errUnknownCommand, fields[0])
	}
}

func printSnapshot(w io.Writer, snap tracker.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tNAME\tLATITUDE\tLONGITUDE\tSAMPLES\t")
	for _, p := range snap.Participants {
		id := p.ID
		if p.IsLocal {
			id += " (you)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\t%d\t\n", id, p.DisplayName, p.LastPosition.Latitude, p.LastPosition.Longitude, len(p.Path))
	}

	if snap.Destination == nil {
		return
	}
	fmt.Fprintf(tw, "destination\t\t%.6f\t%.6f\t\t\n", snap.Destination.Latitude, snap.Destination.Longitude)
	if snap.LocalPosition != nil {
		km := tracker.HaversineDistance(*snap.LocalPosition, *snap.Destination)
		fmt.Fprintf(tw, "distance\t%s km\t\t\t\t\n", tracker.FormatDistance(km))
	}
}
