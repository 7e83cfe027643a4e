package panel

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

//go:embed web/templates/*.html web/static/*
var content embed.FS

// TimeLayout is how timestamps appear on the board.
const TimeLayout = "2006-01-02 15:04:05"

// NeverSeen is shown for seats with no last-present time.
const NeverSeen = "----"

// defaultRefreshSeconds is the board's auto-reload period.
const defaultRefreshSeconds = 5

// Row is one seat on the attendance board.
type Row struct {
	Name        string
	Status      string // machine label, used as a CSS class
	Display     string
	LastPresent string
}

// Board is the view model for the attendance page.
type Board struct {
	Title          string
	QueryTime      string
	RefreshSeconds int
	Rows           []Row
}

// EditForm is the view model for the address editing page.
type EditForm struct {
	Title string
	Names []string
}

// Renderer renders the HTML pages from embedded templates.
type Renderer struct {
	attendance *template.Template
	edit       *template.Template
	title      string
	loc        *time.Location
}

// NewRenderer parses the embedded templates. Times are shown in loc
// (local time when nil).
func NewRenderer(title string, loc *time.Location) (*Renderer, error) {
	if title == "" {
		title = "Attendance"
	}
	if loc == nil {
		loc = time.Local
	}

	attendance, err := template.ParseFS(content, "web/templates/attendance.html")
	if err != nil {
		return nil, fmt.Errorf("parsing attendance template: %w", err)
	}
	edit, err := template.ParseFS(content, "web/templates/edit.html")
	if err != nil {
		return nil, fmt.Errorf("parsing edit template: %w", err)
	}

	return &Renderer{attendance: attendance, edit: edit, title: title, loc: loc}, nil
}

// NewBoard converts a snapshot into the board view model.
func (r *Renderer) NewBoard(snap occupancy.Snapshot) Board {
	rows := make([]Row, 0, len(snap.Seats))
	for _, seat := range snap.Seats {
		last := NeverSeen
		if seat.LastPresent != nil {
			last = seat.LastPresent.In(r.loc).Format(TimeLayout)
		}
		rows = append(rows, Row{
			Name:        seat.Name,
			Status:      seat.Status.String(),
			Display:     seat.Status.DisplayName(),
			LastPresent: last,
		})
	}

	return Board{
		Title:          r.title,
		QueryTime:      snap.QueryTime.In(r.loc).Format(TimeLayout),
		RefreshSeconds: defaultRefreshSeconds,
		Rows:           rows,
	}
}

// RenderAttendance writes the attendance board.
func (r *Renderer) RenderAttendance(w http.ResponseWriter, snap occupancy.Snapshot) error {
	return render(w, r.attendance, r.NewBoard(snap))
}

// RenderEdit writes the address editing form.
func (r *Renderer) RenderEdit(w http.ResponseWriter, names []string) error {
	return render(w, r.edit, EditForm{Title: r.title, Names: names})
}

// render executes into a buffer first so a template error never leaves a
// half-written page behind.
func render(w http.ResponseWriter, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("rendering %s: %w", tmpl.Name(), err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}

// StaticHandler serves the stylesheet and other static assets.
//
// When dir is non-empty and exists, assets are served from the filesystem
// (edit CSS without recompiling). Otherwise the embedded copy is used.
// Panics if the embedded assets cannot be loaded (build error).
func StaticHandler(dir string) http.Handler {
	var fileSystem http.FileSystem

	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fileSystem = http.Dir(dir)
		}
	}

	if fileSystem == nil {
		staticFS, err := fs.Sub(content, "web/static")
		if err != nil {
			panic(fmt.Sprintf("panel: failed to load embedded static assets: %v", err))
		}
		fileSystem = http.FS(staticFS)
	}

	fileServer := http.FileServer(fileSystem)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		fileServer.ServeHTTP(w, r)
	})
}
