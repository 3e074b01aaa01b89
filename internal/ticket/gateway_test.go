package ticket_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"microstatus/internal/services"
	"microstatus/internal/store"
	"microstatus/internal/testsupport"
	"microstatus/internal/ticket"
)

func dataset() *store.Dataset {
	return &store.Dataset{ID: 42, Owner: "smithlab", Project: "CL0007", Name: "brain 01"}
}

func TestNamesArePaddedAndSanitized(t *testing.T) {
	d := dataset()
	if got := ticket.Name(d, ticket.StageStitch); got != "00042_smithlab_CL0007_brain-01.txt" {
		t.Fatalf("unexpected stitch name %q", got)
	}
	if got := ticket.Name(d, ticket.StageMove); got != "00042_smithlab_CL0007_brain-01_move.txt" {
		t.Fatalf("unexpected move name %q", got)
	}
	earlier := &store.Dataset{ID: 9, Owner: "a", Project: "b", Name: "c"}
	if ticket.Name(earlier, ticket.StageStitch) > ticket.Name(d, ticket.StageStitch) {
		t.Fatal("expected lexicographic order to follow submission order")
	}
}

func TestContentEncodingIsBitExact(t *testing.T) {
	stitch := ticket.StitchContent("/fast/lab/CL1/brain", false)
	if got := string(stitch.Encode()); got != "rootDir=\"/fast/lab/CL1/brain\"\nkeepComposites=True\nmoveToHive=False" {
		t.Fatalf("unexpected stitch content %q", got)
	}
	move := ticket.MoveContent("/fast/lab/CL1/brain")
	if got := string(move.Encode()); got != "rootDir=\"/fast/lab/CL1/brain\"\nIMS=False\ndenoise=False\nmoveOnly=True" {
		t.Fatalf("unexpected move content %q", got)
	}

	parsed, err := ticket.Parse(move.Encode())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.RootDir != "/fast/lab/CL1/brain" {
		t.Fatalf("unexpected root %q", parsed.RootDir)
	}
	if v, ok := parsed.Flag("moveOnly"); !ok || !v {
		t.Fatalf("expected moveOnly=True, got %v %v", v, ok)
	}
}

func TestContentWritesRootDirVerbatim(t *testing.T) {
	root := `/fast/lab\share/brain "b"`
	got := string(ticket.MoveContent(root).Encode())
	want := "rootDir=\"" + root + "\"\nIMS=False\ndenoise=False\nmoveOnly=True"
	if got != want {
		t.Fatalf("expected raw root path, got %q", got)
	}
	parsed, err := ticket.Parse([]byte(got))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.RootDir != root {
		t.Fatalf("expected %q back, got %q", root, parsed.RootDir)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, body := range []string{"rootDir", "keepComposites=True", "rootDir=\"/x\"\nIMS=maybe"} {
		if _, err := ticket.Parse([]byte(body)); err == nil {
			t.Errorf("expected error for %q", body)
		}
	}
}

func TestWorkRootReadsXMLTickets(t *testing.T) {
	xmlBody := []byte(`<job><inFilePathUnix>/in</inFilePathUnix><outFilePathUnix> /out/job_3 </outFilePathUnix></job>`)
	if root, ok := ticket.WorkRoot(xmlBody); !ok || root != "/out/job_3" {
		t.Fatalf("unexpected xml root %q %v", root, ok)
	}
	if root, ok := ticket.WorkRoot([]byte("rootDir=\"/fast/x\"\nIMS=False")); !ok || root != "/fast/x" {
		t.Fatalf("unexpected key/value root %q %v", root, ok)
	}
	if _, ok := ticket.WorkRoot([]byte("garbage")); ok {
		t.Fatal("expected garbage to yield no root")
	}
}

func TestEnqueueIsExactlyOnceAcrossDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gw := ticket.NewGateway(cfg)
	d := dataset()
	name := ticket.Name(d, ticket.StageStitch)
	content := ticket.StitchContent("/fast/x", false)

	written, err := gw.Enqueue(ticket.StageStitch, name, content)
	if err != nil || !written {
		t.Fatalf("first Enqueue = %v, %v", written, err)
	}
	written, err = gw.Enqueue(ticket.StageStitch, name, content)
	if err != nil || written {
		t.Fatalf("second Enqueue = %v, %v", written, err)
	}

	// A worker claims and completes the ticket; enqueue must still refuse.
	queued := filepath.Join(gw.Dir(ticket.StageStitch, ticket.LocationQueued), name)
	completeDir := gw.Dir(ticket.StageStitch, ticket.LocationComplete)
	testsupport.MustMkdir(t, completeDir)
	if err := os.Rename(queued, filepath.Join(completeDir, name)); err != nil {
		t.Fatal(err)
	}
	written, err = gw.Enqueue(ticket.StageStitch, name, content)
	if err != nil || written {
		t.Fatalf("Enqueue after completion = %v, %v", written, err)
	}

	found, err := gw.Locate(ticket.StageStitch, ticket.Pattern(d, ticket.StageStitch))
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if found.Location != ticket.LocationComplete {
		t.Fatalf("expected complete, got %q", found.Location)
	}

	entries, err := os.ReadDir(gw.Dir(ticket.StageStitch, ticket.LocationQueued))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftovers in queued, got %d entries", len(entries))
	}
}

func TestStitchPatternIgnoresMoveTicket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gw := ticket.NewGateway(cfg)
	d := dataset()

	if _, err := gw.Enqueue(ticket.StageMove, ticket.Name(d, ticket.StageMove), ticket.MoveContent("/fast/x")); err != nil {
		t.Fatal(err)
	}
	found, err := gw.Locate(ticket.StageStitch, ticket.Pattern(d, ticket.StageStitch))
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if found.Location != ticket.LocationNone {
		t.Fatalf("expected the move ticket not to count as a stitch ticket, got %+v", found)
	}
}

func TestLocateDuplicateIsProtocolViolation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gw := ticket.NewGateway(cfg)
	d := dataset()

	base := ticket.Base(d)
	testsupport.WriteFile(t, filepath.Join(gw.Dir(ticket.StageBuild, ticket.LocationQueued), base+"_job_1.imsqueue"), 10)
	testsupport.WriteFile(t, filepath.Join(gw.Dir(ticket.StageBuild, ticket.LocationError), base+"_job_1.imsqueue"), 10)

	_, err := gw.Locate(ticket.StageBuild, ticket.Pattern(d, ticket.StageBuild))
	if !errors.Is(err, services.ErrProtocolViolation) || !errors.Is(err, ticket.ErrDuplicate) {
		t.Fatalf("expected duplicate protocol violation, got %v", err)
	}
}

func TestRequeueMovesFinishedTicketBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gw := ticket.NewGateway(cfg)
	d := dataset()
	pattern := ticket.Pattern(d, ticket.StageBuild)

	if _, err := gw.Requeue(ticket.StageBuild, pattern); !errors.Is(err, services.ErrProtocolViolation) {
		t.Fatalf("expected protocol violation for missing ticket, got %v", err)
	}

	name := ticket.Base(d) + "_job_2.imsqueue"
	testsupport.WriteFile(t, filepath.Join(gw.Dir(ticket.StageBuild, ticket.LocationComplete), name), 10)

	moved, err := gw.Requeue(ticket.StageBuild, pattern)
	if err != nil || !moved {
		t.Fatalf("Requeue = %v, %v", moved, err)
	}
	found, err := gw.Locate(ticket.StageBuild, pattern)
	if err != nil || found.Location != ticket.LocationQueued {
		t.Fatalf("expected ticket in queued, got %+v %v", found, err)
	}

	moved, err = gw.Requeue(ticket.StageBuild, pattern)
	if err != nil || moved {
		t.Fatalf("second Requeue = %v, %v", moved, err)
	}
}

func TestListSkipsTempFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gw := ticket.NewGateway(cfg)
	dir := gw.Dir(ticket.StageStitch, ticket.LocationQueued)
	testsupport.WriteFile(t, filepath.Join(dir, ".tmp-00001_a_b_c.txt"), 1)
	testsupport.WriteFile(t, filepath.Join(dir, "00002_a_b_c.txt"), 1)
	testsupport.WriteFile(t, filepath.Join(dir, "00001_a_b_c.txt"), 1)

	got, err := gw.List(ticket.StageStitch, ticket.LocationQueued, "*.txt")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 2 || !strings.HasSuffix(got[0], "00001_a_b_c.txt") {
		t.Fatalf("unexpected listing %v", got)
	}
}
