// Command mock-transcriber serves a local stand-in for the OpenAI audio
// transcription endpoint. Point the transcriber at it via
// transcription.base_url to exercise the full pipeline without an API key:
//
//	transcription:
//	  base_url: http://localhost:9000/v1
//
// Each response carries fabricated word timestamps spread across the chunk,
// and repeats the tail of the previous response at the head of the next one
// so the overlap trimming downstream has something real to chew on.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skypro1111/live-transcriber/internal/audio"
)

var sentencePool = strings.Fields(
	"the quick brown fox jumps over the lazy dog while seven wizards " +
		"quietly boxed up five dozen jugs of liquid before dawn broke " +
		"over the sleeping harbor and the ferries began their slow runs",
)

type wordStamp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type verboseResponse struct {
	Task     string      `json:"task"`
	Language string      `json:"language"`
	Duration float64     `json:"duration"`
	Text     string      `json:"text"`
	Words    []wordStamp `json:"words"`
}

// generator hands out consecutive slices of the sentence pool, repeating the
// last overlapTokens words of each response at the head of the next.
type generator struct {
	pos           int
	overlapTokens int
	mu            sync.Mutex
}

func (g *generator) next(count int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := g.pos - g.overlapTokens
	if start < 0 {
		start = 0
	}

	words := make([]string, 0, count)
	for i := 0; i < count; i++ {
		words = append(words, sentencePool[(start+i)%len(sentencePool)])
	}

	g.pos = start + count
	return words
}

func transcribeHandler(gen *generator, delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}

		model := r.FormValue("model")
		language := r.FormValue("language")
		if language == "" {
			language = "english"
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Error getting audio file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		wavData, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "Error reading audio file", http.StatusInternalServerError)
			return
		}

		duration, err := audio.WAVDuration(wavData)
		if err != nil {
			http.Error(w, "Error decoding audio: "+err.Error(), http.StatusBadRequest)
			return
		}

		// Roughly two words per second of audio
		count := int(duration * 2)
		if count < 1 {
			count = 1
		}

		texts := gen.next(count)
		words := make([]wordStamp, len(texts))
		step := duration / float64(len(texts))
		for i, text := range texts {
			words[i] = wordStamp{
				Word:  text,
				Start: float64(i) * step,
				End:   float64(i+1) * step,
			}
		}

		log.Printf("Transcription request: file=%s model=%s duration=%.2fs words=%d",
			header.Filename, model, duration, len(words))

		if delay > 0 {
			time.Sleep(delay)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(verboseResponse{
			Task:     "transcribe",
			Language: language,
			Duration: duration,
			Text:     strings.Join(texts, " "),
			Words:    words,
		})
	}
}

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	delay := flag.Duration("delay", 200*time.Millisecond, "simulated processing time per request")
	overlap := flag.Int("overlap", 3, "words repeated across consecutive responses")
	flag.Parse()

	gen := &generator{overlapTokens: *overlap}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", transcribeHandler(gen, *delay))

	log.Printf("Mock transcription server listening on %s", *addr)
	log.Printf("Endpoint: http://localhost%s/v1/audio/transcriptions", *addr)

	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
