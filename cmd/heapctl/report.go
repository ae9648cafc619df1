package main

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/heapkit/internal/trace"
)

// writeReport prints a replay summary with grouped digits.
func writeReport(w io.Writer, name string, res trace.Result) {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "Trace: %s\n", name)
	p.Fprintf(w, "  Operations:      %d\n", res.Ops)
	p.Fprintf(w, "  Peak live bytes: %d\n", res.PeakLive)
	p.Fprintf(w, "  Live at end:     %d blocks, %d bytes\n", res.Live, res.LiveBytes)
	p.Fprintf(w, "  Trims released:  %d\n", res.Released)

	s := res.Arena
	p.Fprintf(w, "\nArena:\n")
	p.Fprintf(w, "  System bytes:    %d (max %d)\n", s.Arena, s.MaxSystemMem)
	p.Fprintf(w, "  In use bytes:    %d\n", s.UordBlks)
	p.Fprintf(w, "  Free bytes:      %d in %d chunks (%d fast)\n", s.FordBlks, s.OrdBlks+s.SmBlks, s.SmBlks)
	p.Fprintf(w, "  Top:             %d\n", s.KeepCost)
	p.Fprintf(w, "  Growths/trims:   %d/%d, %d bytes released\n", s.SysmallocCalls, s.SystrimCalls, s.BytesReleased)

	if ps := res.Pool; ps != nil {
		p.Fprintf(w, "\nPool:\n")
		p.Fprintf(w, "  Block size:      %d (%d per page)\n", ps.BlockSize, ps.BlocksPerPage)
		p.Fprintf(w, "  Pages:           %d (%d bytes)\n", ps.Pages, ps.SystemBytes)
		p.Fprintf(w, "  Allocs/frees:    %d/%d\n", ps.Allocs, ps.Frees)
	}
}
