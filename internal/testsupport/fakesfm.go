package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"recomo/internal/sfm"
)

// DefaultCloud is a small ASCII point cloud served by FakeSFM.
const DefaultCloud = `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
end_header
0 0 0 255 0 0
1 0 0 0 255 0
0 1 0 0 0 255
`

// DefaultPoses is a two-pose TUM trajectory served by FakeSFM.
const DefaultPoses = `# timestamp tx ty tz qx qy qz qw
0 0 0 0 0 0 0 1
10 10 0 0 0 0 0 1
`

// Upload records one POST /upload call.
type Upload struct {
	ProjectID string
	ForceNew  bool
	Group     string
	Size      int
}

// FakeSFM is an in-process reconstruction service. Status responses are
// scripted per project; the last scripted status repeats.
type FakeSFM struct {
	Server *httptest.Server

	mu          sync.Mutex
	nextID      int
	statuses    map[string][]sfm.Status
	uploads     []Upload
	statusCalls map[string]int
	starts      map[string]int
	fetches     map[string]int
	cloud       string
	poses       string
	videos      map[string][]byte
}

// NewFakeSFM starts the fake and registers cleanup.
func NewFakeSFM(t testing.TB) *FakeSFM {
	t.Helper()
	f := &FakeSFM{
		statuses:    make(map[string][]sfm.Status),
		statusCalls: make(map[string]int),
		starts:      make(map[string]int),
		fetches:     make(map[string]int),
		cloud:       DefaultCloud,
		poses:       DefaultPoses,
		videos:      make(map[string][]byte),
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload", f.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/status", f.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/reconstruct", f.handleReconstruct).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/pointcloud", f.handlePointCloud).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/poses", f.handlePoses).Methods(http.MethodGet)
	router.HandleFunc("/static/{id}/{file}", f.handleStatic).Methods(http.MethodGet)
	router.HandleFunc("/videos/{name}", f.handleVideo).Methods(http.MethodGet)

	f.Server = httptest.NewServer(router)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL returns the API root.
func (f *FakeSFM) BaseURL() string { return f.Server.URL + "/api" }

// ScriptStatus sets the sequence of status responses for projectID.
func (f *FakeSFM) ScriptStatus(projectID string, statuses ...sfm.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[projectID] = statuses
}

// SetArtifacts replaces the served point cloud and pose files.
func (f *FakeSFM) SetArtifacts(cloud, poses string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cloud, f.poses = cloud, poses
}

// AddVideo serves data at /videos/name and returns its URL.
func (f *FakeSFM) AddVideo(name string, data []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[name] = data
	return f.Server.URL + "/videos/" + name
}

// NextProjectID returns the id the next upload will receive.
func (f *FakeSFM) NextProjectID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return projectName(f.nextID + 1)
}

// Uploads returns the recorded uploads.
func (f *FakeSFM) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

// StatusCalls returns how often projectID's status was read.
func (f *FakeSFM) StatusCalls(projectID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[projectID]
}

// Starts returns how often reconstruction was started for projectID.
func (f *FakeSFM) Starts(projectID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts[projectID]
}

// Fetches returns how often an artifact file was downloaded.
func (f *FakeSFM) Fetches(file string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[file]
}

func projectName(n int) string { return fmt.Sprintf("proj-%d", n) }

func (f *FakeSFM) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	f.mu.Lock()
	f.nextID++
	id := projectName(f.nextID)
	f.uploads = append(f.uploads, Upload{
		ProjectID: id,
		ForceNew:  r.FormValue("force_new") == "true",
		Group:     r.FormValue("group"),
		Size:      len(data),
	})
	f.mu.Unlock()

	writeJSON(w, map[string]string{"project_id": id})
}

func (f *FakeSFM) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	f.statusCalls[id]++
	script := f.statuses[id]
	status := sfm.Status{Text: "完成", HasPointCloud: true, HasCameraPoses: true}
	if len(script) > 0 {
		status = script[0]
		if len(script) > 1 {
			f.statuses[id] = script[1:]
		}
	}
	f.mu.Unlock()
	writeJSON(w, status)
}

func (f *FakeSFM) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.starts[mux.Vars(r)["id"]]++
	f.mu.Unlock()
	writeJSON(w, map[string]string{"message": "started"})
}

func (f *FakeSFM) handlePointCloud(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"pointcloud_url": "/static/" + mux.Vars(r)["id"] + "/cloud.ply"})
}

func (f *FakeSFM) handlePoses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"poses_url": "/static/" + mux.Vars(r)["id"] + "/poses.txt"})
}

func (f *FakeSFM) handleStatic(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	f.mu.Lock()
	f.fetches[file]++
	cloud, poses := f.cloud, f.poses
	f.mu.Unlock()
	switch {
	case strings.HasSuffix(file, ".ply"):
		_, _ = io.WriteString(w, cloud)
	case strings.HasSuffix(file, ".txt"):
		_, _ = io.WriteString(w, poses)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeSFM) handleVideo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.videos[mux.Vars(r)["name"]]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
