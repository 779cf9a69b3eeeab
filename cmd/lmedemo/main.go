// This demo drives a single in-process store of workspaces over HTTP,
// the way cmd/demo drove a single in-process map of CRDT lists: no
// message-loss or out-of-order network handling is assumed, since this
// exists to exercise the library end to end, not to be the production
// transport.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/lme/lmecore/layer"
	"github.com/lme/lmecore/molecule"
	"github.com/lme/lmecore/stack"
	"github.com/lme/lmecore/stacktree"
	"github.com/lme/lmecore/store"
)

var (
	port          = flag.Int("port", 8009, "port to run server")
	debug         = flag.Bool("debug", false, "whether to dump debug information. Default debug file is log_{{datetime}}.jsonl")
	debugFilename = flag.String("debug_file", "", "file to dump debug information in JSONL format. Implies --debug")
	staticDir     = flag.String("static_dir", "", "Directory with static files")
)

type debugMsgType int

const (
	writeDebug debugMsgType = iota
	syncDebug
)

type debugMessage struct {
	msgType debugMsgType
	payload interface{}
}

type server struct {
	store     *store.Store
	debugMsgs debugChan

	numWorkspaceRequests int
	numStackRequests     int
}

func main() {
	flag.Parse()

	debugMsgs := runDebug()
	s := &server{store: store.New(), debugMsgs: debugMsgs}

	http.Handle("/", http.FileServer(http.Dir(*staticDir)))
	http.Handle("/workspace", workspaceHTTPHandler{s})
	http.Handle("/stack", stackHTTPHandler{s})
	http.Handle("/write", writeHTTPHandler{s})
	http.Handle("/read", readHTTPHandler{s})
	http.Handle("/export", exportHTTPHandler{s})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Serving in %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// -----

type createWorkspaceRequest struct {
	Name string                `json:"name"`
	Base molecule.WireMolecule `json:"base"`
}

type workspaceHTTPHandler struct{ s *server }

func (h workspaceHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		h.create(w, req)
	case http.MethodDelete:
		h.delete(w, req)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h workspaceHTTPHandler) create(w http.ResponseWriter, req *http.Request) {
	var creq createWorkspaceRequest
	if err := json.NewDecoder(req.Body).Decode(&creq); err != nil {
		log.Printf("Error parsing body in /workspace: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.s.debugMsgs.send(writeDebug, map[string]interface{}{"Type": "createWorkspace", "Request": creq})
	defer h.s.debugMsgs.sync()

	base, err := molecule.FromWire(creq.Base)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "workspace error: %v", err)
		return
	}
	if err := h.s.store.Create(creq.Name, base); err != nil {
		log.Printf("Error creating workspace %q: %v", creq.Name, err)
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "workspace error: %v", err)
		return
	}
	h.s.numWorkspaceRequests++
	w.WriteHeader(http.StatusOK)
}

func (h workspaceHTTPHandler) delete(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("name")
	if err := h.s.store.Delete(name); err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "workspace error: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// -----

type createStackRequest struct {
	Workspace string      `json:"workspace"`
	Layers    []json.RawMessage `json:"layers"`
	Copies    int         `json:"copies"`
}

type createStackResponse struct {
	Index int `json:"index"`
}

type stackHTTPHandler struct{ s *server }

func (h stackHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var creq createStackRequest
	if err := json.NewDecoder(req.Body).Decode(&creq); err != nil {
		log.Printf("Error parsing body in /stack: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.s.debugMsgs.send(writeDebug, map[string]interface{}{"Type": "createStack", "Request": creq})
	defer h.s.debugMsgs.sync()

	ws, err := h.s.store.Get(creq.Workspace)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "stack error: %v", err)
		return
	}
	layers := make([]layer.Layer, len(creq.Layers))
	for i, raw := range creq.Layers {
		l, err := layer.Unmarshal(raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "stack error: %v", err)
			return
		}
		layers[i] = l
	}
	index := ws.CreateStack(stack.New(layers), creq.Copies)
	h.s.numStackRequests++

	bs, err := json.Marshal(createStackResponse{Index: index})
	if err != nil {
		log.Printf("Error marshaling create-stack response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(bs)
}

// -----

type writeRequest struct {
	Workspace string                `json:"workspace"`
	Start     int                   `json:"start"`
	Range     int                   `json:"range"`
	Molecule  molecule.WireMolecule `json:"molecule"`
}

type writeResponse struct {
	OK bool `json:"ok"`
}

type writeHTTPHandler struct{ s *server }

func (h writeHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var wreq writeRequest
	if err := json.NewDecoder(req.Body).Decode(&wreq); err != nil {
		log.Printf("Error parsing body in /write: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.s.debugMsgs.send(writeDebug, map[string]interface{}{"Type": "write", "Request": wreq})
	defer h.s.debugMsgs.sync()

	ws, err := h.s.store.Get(wreq.Workspace)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "write error: %v", err)
		return
	}
	m, err := molecule.FromWire(wreq.Molecule)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "write error: %v", err)
		return
	}
	ok, err := ws.WriteToStack(req.Context(), wreq.Start, wreq.Range, m)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "write error: %v", err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
	}
	bs, _ := json.Marshal(writeResponse{OK: ok})
	w.Header().Set("Content-Type", "application/json")
	w.Write(bs)
}

// -----

type readResponse struct {
	Molecules []molecule.WireMolecule `json:"molecules"`
	Errors    []string                `json:"errors"`
}

type readHTTPHandler struct{ s *server }

func (h readHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	name := q.Get("workspace")
	start, rng := queryInt(q, "start"), queryInt(q, "range")

	ws, err := h.s.store.Get(name)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "read error: %v", err)
		return
	}
	molecules, errs := ws.ReadRange(req.Context(), start, rng)
	if molecules == nil && len(errs) == 1 {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "read error: %v", errs[0])
		return
	}

	resp := readResponse{Molecules: make([]molecule.WireMolecule, len(molecules)), Errors: make([]string, len(errs))}
	for i, m := range molecules {
		wire, err := molecule.ToWire(m)
		if err == nil {
			resp.Molecules[i] = wire
		}
		if errs[i] != nil {
			resp.Errors[i] = errs[i].Error()
		}
	}
	bs, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(bs)
}

func queryInt(q map[string][]string, key string) int {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return 0
	}
	var n int
	fmt.Sscanf(vals[0], "%d", &n)
	return n
}

// -----

type exportResponse struct {
	Base      molecule.WireMolecule `json:"base"`
	Stacks    json.RawMessage       `json:"stacks"`
	AtomNames map[string]int        `json:"atom_names"`
	Groups    [][2]interface{}      `json:"groups"`
}

type exportHTTPHandler struct{ s *server }

func (h exportHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("workspace")
	ws, err := h.s.store.Get(name)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "export error: %v", err)
		return
	}
	exp := ws.Export()
	base, err := molecule.ToWire(exp.Base)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	forestJSON, err := stacktree.Marshal(exp.Forest)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	bs, err := json.Marshal(exportResponse{
		Base:      base,
		Stacks:    forestJSON,
		AtomNames: exp.AtomNames,
		Groups:    exp.Groups,
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(bs)
}

// -----

type debugChan chan debugMessage

func (ch debugChan) send(t debugMsgType, payload interface{}) {
	if ch == nil {
		return
	}
	ch <- debugMessage{msgType: t, payload: payload}
}

func (ch debugChan) sync() {
	if ch == nil {
		return
	}
	ch <- debugMessage{msgType: syncDebug}
}

func runDebug() debugChan {
	f := createDebug()
	if f == nil {
		return nil
	}
	ch := make(debugChan, 10)
	go func() {
		for msg := range ch {
			switch msg.msgType {
			case writeDebug:
				if bs, err := json.Marshal(msg.payload); err != nil {
					log.Printf("Error while writing to debug file: %v", err)
				} else {
					f.Write(bs)
					f.WriteString("\n")
				}
			case syncDebug:
				f.Sync()
			}
		}
		f.Close()
	}()
	return ch
}

func createDebug() *os.File {
	if !*debug && *debugFilename == "" {
		return nil
	}
	if *debugFilename == "" {
		datetime := time.Now().Format("2006-01-02T15:04:05")
		*debugFilename = fmt.Sprintf("log_%s.jsonl", datetime)
	}
	f, err := os.Create(*debugFilename)
	if err != nil {
		log.Printf("Error opening debug file: %v", err)
		return nil
	}
	return f
}
