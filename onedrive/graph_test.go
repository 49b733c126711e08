package onedrive

// An in-memory Graph drive API, just enough of it for the tests to
// exercise every operation against.

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rkhwaja/fs.onedrivefs/onedrive/api"
	"github.com/rkhwaja/fs.onedrivefs/onedrive/quickxorhash"
)

type fakeItem struct {
	id       string
	name     string
	parent   string // id of the parent, "" for the root
	folder   bool
	content  []byte
	created  time.Time
	modified time.Time
}

type fakeSession struct {
	parent string
	name   string
	buf    []byte
}

type fakeGraph struct {
	mu       sync.Mutex
	items    map[string]*fakeItem
	sessions map[string]*fakeSession
	jobs     map[string]string // job id -> status
	subs     map[string]*api.Subscription
	nextID   int
	pageSize int
	// Content-Range headers seen on fragment uploads, for assertions
	fragmentRanges []string
	srv            *httptest.Server
}

func newFakeGraph(t *testing.T) *fakeGraph {
	g := &fakeGraph{
		items:    map[string]*fakeItem{},
		sessions: map[string]*fakeSession{},
		jobs:     map[string]string{},
		subs:     map[string]*api.Subscription{},
		pageSize: 1000,
	}
	now := time.Now().UTC().Truncate(time.Second)
	g.items["root"] = &fakeItem{id: "root", name: "root", folder: true, created: now, modified: now}
	g.srv = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.srv.Close)
	return g
}

// newTestFs makes an Fs talking to a fresh fake server
func newTestFs(t *testing.T) (*Fs, *fakeGraph) {
	g := newFakeGraph(t)
	f, err := New(Options{
		Client:     http.DefaultClient,
		ServiceURL: g.srv.URL,
	})
	if err != nil {
		t.Fatal(err)
	}
	return f, g
}

func (g *fakeGraph) newID() string {
	g.nextID++
	return fmt.Sprintf("id%d", g.nextID)
}

// addItem creates an item under the parent directly, bypassing the API
func (g *fakeGraph) addItem(parentID, name string, folder bool, content []byte) *fakeItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now().UTC().Truncate(time.Second)
	item := &fakeItem{
		id:       g.newID(),
		name:     name,
		parent:   parentID,
		folder:   folder,
		content:  content,
		created:  now,
		modified: now,
	}
	g.items[item.id] = item
	return item
}

func (g *fakeGraph) childByName(parentID, name string) *fakeItem {
	for _, item := range g.items {
		if item.parent == parentID && item.name == name {
			return item
		}
	}
	return nil
}

func (g *fakeGraph) children(parentID string) []*fakeItem {
	var out []*fakeItem
	for _, item := range g.items {
		if item.id != parentID && item.parent == parentID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// resolve walks a slash separated path from the root
func (g *fakeGraph) resolve(p string) *fakeItem {
	item := g.items["root"]
	for _, segment := range strings.Split(p, "/") {
		if segment == "" {
			continue
		}
		if item == nil || !item.folder {
			return nil
		}
		item = g.childByName(item.id, segment)
	}
	return item
}

func (g *fakeGraph) deleteRecursive(id string) {
	for _, child := range g.children(id) {
		g.deleteRecursive(child.id)
	}
	delete(g.items, id)
}

func (g *fakeGraph) itemJSON(item *fakeItem) api.Item {
	created := api.Timestamp(item.created)
	modified := api.Timestamp(item.modified)
	out := api.Item{
		ID:                   item.id,
		Name:                 item.name,
		Size:                 int64(len(item.content)),
		CreatedDateTime:      created,
		LastModifiedDateTime: modified,
		FileSystemInfo: &api.FileSystemInfoFacet{
			CreatedDateTime:      &created,
			LastModifiedDateTime: &modified,
		},
	}
	if item.parent != "" {
		out.ParentReference = &api.ItemReference{ID: item.parent, DriveID: "drive1"}
	}
	if item.folder {
		out.Folder = &api.FolderFacet{ChildCount: int64(len(g.children(item.id)))}
	} else {
		hash := quickxorhash.Sum(item.content)
		out.File = &api.FileFacet{
			MimeType: "application/octet-stream",
			Hashes:   api.HashesType{QuickXorHash: base64.StdEncoding.EncodeToString(hash[:])},
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func graphError(w http.ResponseWriter, status int, code, message string) {
	var e api.Error
	e.ErrorInfo.Code = code
	e.ErrorInfo.Message = message
	writeJSON(w, status, &e)
}

func notFound(w http.ResponseWriter) {
	graphError(w, http.StatusNotFound, "itemNotFound", "The resource could not be found.")
}

func (g *fakeGraph) handle(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/me/drive/"):
		g.handleDrive(w, r, strings.TrimPrefix(path, "/me/drive"))
	case strings.HasPrefix(path, "/upload/"):
		g.handleUpload(w, r, strings.TrimPrefix(path, "/upload/"))
	case strings.HasPrefix(path, "/monitor/"):
		g.handleMonitor(w, r, strings.TrimPrefix(path, "/monitor/"))
	case strings.HasPrefix(path, "/subscriptions"):
		g.handleSubscriptions(w, r, strings.TrimPrefix(path, "/subscriptions"))
	default:
		notFound(w)
	}
}

func (g *fakeGraph) handleDrive(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case rest == "/root":
		writeJSON(w, http.StatusOK, g.itemJSON(g.items["root"]))
	case strings.HasPrefix(rest, "/root:"):
		s := strings.TrimPrefix(rest, "/root:")
		p, extra := s, ""
		if idx := strings.Index(s, ":"); idx >= 0 {
			p, extra = s[:idx], s[idx+1:]
		}
		g.handlePath(w, r, p, extra)
	case strings.HasPrefix(rest, "/items/"):
		s := strings.TrimPrefix(rest, "/items/")
		id, extra := s, ""
		if idx := strings.IndexAny(s, "/:"); idx >= 0 {
			id, extra = s[:idx], s[idx:]
		}
		g.handleItem(w, r, id, extra)
	default:
		notFound(w)
	}
}

// handlePath serves the /root:{path}: addressing form
func (g *fakeGraph) handlePath(w http.ResponseWriter, r *http.Request, p, extra string) {
	item := g.resolve(p)
	if item == nil {
		notFound(w)
		return
	}
	switch extra {
	case "":
		writeJSON(w, http.StatusOK, g.itemJSON(item))
	case "/content":
		g.serveContent(w, r, item)
	default:
		notFound(w)
	}
}

func (g *fakeGraph) handleItem(w http.ResponseWriter, r *http.Request, id, extra string) {
	item, ok := g.items[id]
	if !ok {
		notFound(w)
		return
	}
	switch {
	case extra == "":
		switch r.Method {
		case "GET":
			writeJSON(w, http.StatusOK, g.itemJSON(item))
		case "PATCH":
			g.patchItem(w, r, item)
		case "DELETE":
			g.deleteRecursive(id)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case extra == "/children":
		switch r.Method {
		case "GET":
			g.listChildren(w, r, item)
		case "POST":
			g.createChild(w, r, item)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case extra == "/content":
		g.serveContent(w, r, item)
	case extra == "/copy":
		g.copyItem(w, r, item)
	case strings.HasPrefix(extra, ":/"):
		// the /items/{id}:/{name}:/{action} form
		s := strings.TrimPrefix(extra, ":/")
		idx := strings.Index(s, ":")
		if idx < 0 {
			notFound(w)
			return
		}
		name, action := s[:idx], s[idx+1:]
		switch action {
		case "/content":
			g.putChildContent(w, r, item, name)
		case "/createUploadSession":
			g.createUploadSession(w, item, name)
		default:
			notFound(w)
		}
	default:
		notFound(w)
	}
}

func (g *fakeGraph) patchItem(w http.ResponseWriter, r *http.Request, item *fakeItem) {
	var body struct {
		Name            string                   `json:"name"`
		ParentReference *api.ItemReference       `json:"parentReference"`
		FileSystemInfo  *api.FileSystemInfoFacet `json:"fileSystemInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		graphError(w, http.StatusBadRequest, "invalidRequest", err.Error())
		return
	}
	if body.FileSystemInfo != nil {
		// only the fields present in the patch change
		if body.FileSystemInfo.CreatedDateTime != nil {
			item.created = time.Time(*body.FileSystemInfo.CreatedDateTime)
		}
		if body.FileSystemInfo.LastModifiedDateTime != nil {
			item.modified = time.Time(*body.FileSystemInfo.LastModifiedDateTime)
		}
		writeJSON(w, http.StatusOK, g.itemJSON(item))
		return
	}
	// a move or rename
	name, parent := item.name, item.parent
	if body.Name != "" {
		name = body.Name
	}
	if body.ParentReference != nil {
		if _, ok := g.items[body.ParentReference.ID]; !ok {
			notFound(w)
			return
		}
		parent = body.ParentReference.ID
	}
	if existing := g.childByName(parent, name); existing != nil && existing.id != item.id {
		graphError(w, http.StatusConflict, "nameAlreadyExists", "An item with the same name already exists.")
		return
	}
	item.name, item.parent = name, parent
	writeJSON(w, http.StatusOK, g.itemJSON(item))
}

func (g *fakeGraph) listChildren(w http.ResponseWriter, r *http.Request, item *fakeItem) {
	children := g.children(item.id)
	offset := 0
	if page := r.URL.Query().Get("offset"); page != "" {
		offset, _ = strconv.Atoi(page)
	}
	end := offset + g.pageSize
	if end > len(children) {
		end = len(children)
	}
	response := api.ListChildrenResponse{Value: []api.Item{}}
	for _, child := range children[offset:end] {
		response.Value = append(response.Value, g.itemJSON(child))
	}
	if end < len(children) {
		response.NextLink = g.srv.URL + "/me/drive/items/" + item.id + "/children?offset=" + strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, response)
}

func (g *fakeGraph) createChild(w http.ResponseWriter, r *http.Request, item *fakeItem) {
	var body api.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		graphError(w, http.StatusBadRequest, "invalidRequest", err.Error())
		return
	}
	if g.childByName(item.id, body.Name) != nil {
		graphError(w, http.StatusConflict, "nameAlreadyExists", "An item with the same name already exists.")
		return
	}
	now := time.Now().UTC().Truncate(time.Second)
	child := &fakeItem{
		id:       g.newID(),
		name:     body.Name,
		parent:   item.id,
		folder:   true,
		created:  now,
		modified: now,
	}
	g.items[child.id] = child
	writeJSON(w, http.StatusCreated, g.itemJSON(child))
}

func (g *fakeGraph) serveContent(w http.ResponseWriter, r *http.Request, item *fakeItem) {
	switch r.Method {
	case "GET":
		if item.folder {
			graphError(w, http.StatusBadRequest, "invalidRequest", "Folders have no content.")
			return
		}
		content := item.content
		status := http.StatusOK
		if rng := r.Header.Get("Range"); rng != "" {
			var start int64
			if _, err := fmt.Sscanf(rng, "bytes=%d-", &start); err == nil && start < int64(len(content)) {
				content = content[start:]
				status = http.StatusPartialContent
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write(content)
	case "PUT":
		content, err := io.ReadAll(r.Body)
		if err != nil {
			graphError(w, http.StatusBadRequest, "invalidRequest", err.Error())
			return
		}
		item.content = content
		item.modified = time.Now().UTC().Truncate(time.Second)
		writeJSON(w, http.StatusOK, g.itemJSON(item))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *fakeGraph) putChildContent(w http.ResponseWriter, r *http.Request, parent *fakeItem, name string) {
	if r.Method != "PUT" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		graphError(w, http.StatusBadRequest, "invalidRequest", err.Error())
		return
	}
	child := g.childByName(parent.id, name)
	if child == nil {
		now := time.Now().UTC().Truncate(time.Second)
		child = &fakeItem{id: g.newID(), name: name, parent: parent.id, created: now, modified: now}
		g.items[child.id] = child
	}
	child.content = content
	child.modified = time.Now().UTC().Truncate(time.Second)
	writeJSON(w, http.StatusCreated, g.itemJSON(child))
}

func (g *fakeGraph) createUploadSession(w http.ResponseWriter, parent *fakeItem, name string) {
	id := g.newID()
	g.sessions[id] = &fakeSession{parent: parent.id, name: name}
	writeJSON(w, http.StatusOK, api.CreateUploadResponse{
		UploadURL:          g.srv.URL + "/upload/" + id,
		ExpirationDateTime: api.Timestamp(time.Now().Add(time.Hour)),
	})
}

func (g *fakeGraph) handleUpload(w http.ResponseWriter, r *http.Request, id string) {
	session, ok := g.sessions[id]
	if !ok {
		notFound(w)
		return
	}
	switch r.Method {
	case "DELETE":
		delete(g.sessions, id)
		w.WriteHeader(http.StatusNoContent)
	case "PUT":
		contentRange := r.Header.Get("Content-Range")
		g.fragmentRanges = append(g.fragmentRanges, contentRange)
		var start, end, total int64
		if _, err := fmt.Sscanf(contentRange, "bytes %d-%d/%d", &start, &end, &total); err != nil {
			graphError(w, http.StatusBadRequest, "invalidRequest", "bad Content-Range")
			return
		}
		fragment, err := io.ReadAll(r.Body)
		if err != nil || int64(len(fragment)) != end-start+1 {
			graphError(w, http.StatusBadRequest, "invalidRequest", "fragment length mismatch")
			return
		}
		if int64(len(session.buf)) != start {
			graphError(w, http.StatusConflict, "invalidRange", "fragment out of order")
			return
		}
		session.buf = append(session.buf, fragment...)
		if end+1 < total {
			writeJSON(w, http.StatusAccepted, api.UploadFragmentResponse{
				ExpirationDateTime: api.Timestamp(time.Now().Add(time.Hour)),
				NextExpectedRanges: []string{fmt.Sprintf("%d-%d", end+1, total-1)},
			})
			return
		}
		// final fragment - create the item
		delete(g.sessions, id)
		child := g.childByName(session.parent, session.name)
		if child == nil {
			now := time.Now().UTC().Truncate(time.Second)
			child = &fakeItem{id: g.newID(), name: session.name, parent: session.parent, created: now, modified: now}
			g.items[child.id] = child
		}
		child.content = session.buf
		child.modified = time.Now().UTC().Truncate(time.Second)
		writeJSON(w, http.StatusCreated, g.itemJSON(child))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *fakeGraph) copyItem(w http.ResponseWriter, r *http.Request, item *fakeItem) {
	var body api.CopyItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		graphError(w, http.StatusBadRequest, "invalidRequest", err.Error())
		return
	}
	parent, ok := g.items[body.ParentReference.ID]
	if !ok {
		notFound(w)
		return
	}
	name := item.name
	if body.Name != nil {
		name = *body.Name
	}
	jobID := g.newID()
	if g.childByName(parent.id, name) != nil {
		g.jobs[jobID] = "failed"
	} else {
		now := time.Now().UTC().Truncate(time.Second)
		copied := &fakeItem{
			id:       g.newID(),
			name:     name,
			parent:   parent.id,
			folder:   item.folder,
			content:  append([]byte(nil), item.content...),
			created:  now,
			modified: now,
		}
		g.items[copied.id] = copied
		g.jobs[jobID] = "completed"
	}
	w.Header().Set("Location", g.srv.URL+"/monitor/"+jobID)
	w.WriteHeader(http.StatusAccepted)
}

func (g *fakeGraph) handleMonitor(w http.ResponseWriter, r *http.Request, id string) {
	status, ok := g.jobs[id]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, api.AsyncOperationStatus{Operation: "itemCopy", Status: status})
}

func (g *fakeGraph) handleSubscriptions(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case rest == "" && r.Method == "POST":
		var sub api.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			graphError(w, http.StatusBadRequest, "invalidRequest", err.Error())
			return
		}
		sub.ID = g.newID()
		g.subs[sub.ID] = &sub
		writeJSON(w, http.StatusCreated, &sub)
	case strings.HasPrefix(rest, "/"):
		id := strings.TrimPrefix(rest, "/")
		sub, ok := g.subs[id]
		if !ok {
			notFound(w)
			return
		}
		switch r.Method {
		case "PATCH":
			var update api.UpdateSubscriptionRequest
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				graphError(w, http.StatusBadRequest, "invalidRequest", err.Error())
				return
			}
			sub.ExpirationDateTime = update.ExpirationDateTime
			writeJSON(w, http.StatusOK, sub)
		case "DELETE":
			delete(g.subs, id)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		notFound(w)
	}
}
