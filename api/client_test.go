package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vox/encoder"
	"vox/store"
)

func seededStore(access, refresh string) *store.Mem {
	st := &store.Mem{}
	st.Write(store.TokenPair{Access: access, Refresh: refresh})
	return st
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// refreshHandler counts calls and rotates A1/R1 to A2/R2.
func refreshHandler(calls *atomic.Int32, delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(delay)
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, map[string]string{
			"access_token":  "A2",
			"refresh_token": "R2",
			"token_type":    "bearer",
		})
	}
}

func TestIsExempt(t *testing.T) {
	assert.True(t, IsExempt(EndpointLogin))
	assert.True(t, IsExempt(EndpointTokenRefresh))
	assert.True(t, IsExempt(EndpointPublicEmotions))
	// Suffix match covers fully qualified paths.
	assert.True(t, IsExempt("/api/v1"+EndpointLogin))
	assert.False(t, IsExempt(EndpointStatistics))
	assert.False(t, IsExempt(EndpointPredict))
}

func TestBearerAttachment(t *testing.T) {
	var authed, exempt string
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointStatistics, func(w http.ResponseWriter, r *http.Request) {
		authed = r.Header.Get("Authorization")
		writeJSON(w, Statistics{})
	})
	mux.HandleFunc(EndpointPublicEmotions, func(w http.ResponseWriter, r *http.Request) {
		exempt = r.Header.Get("Authorization")
		writeJSON(w, EmotionDistribution{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, seededStore("A1", "R1"))
	_, err := c.Statistics(context.Background())
	require.NoError(t, err)
	_, err = c.PublicEmotionDistribution(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, "Bearer A1", authed)
	assert.Empty(t, exempt, "exempt endpoint must not receive a token")
}

func TestRefreshAndReplayOnce(t *testing.T) {
	var refreshCalls atomic.Int32
	var tokens []string
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointStatistics, func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer A2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, Statistics{TotalPredictions: 3})
	})
	mux.HandleFunc(EndpointTokenRefresh, refreshHandler(&refreshCalls, 0))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := seededStore("A1", "R1")
	c := New(srv.URL, st)

	stats, err := c.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalPredictions)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, tokens)

	pair, ok := st.Read()
	require.True(t, ok)
	assert.Equal(t, store.TokenPair{Access: "A2", Refresh: "R2"}, pair)
}

func TestReplayHappensAtMostOnce(t *testing.T) {
	// Server keeps answering 401 even with the fresh token; the client must
	// give up after one replay instead of looping.
	var statCalls, refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointStatistics, func(w http.ResponseWriter, r *http.Request) {
		statCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc(EndpointTokenRefresh, refreshHandler(&refreshCalls, 0))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, seededStore("A1", "R1"))
	_, err := c.Statistics(context.Background())

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Equal(t, int32(2), statCalls.Load())
	assert.Equal(t, int32(1), refreshCalls.Load())
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	const workers = 8

	var refreshCalls atomic.Int32
	arrived := make(chan struct{}, workers)
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc(EndpointStatistics, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer A2" {
			writeJSON(w, Statistics{})
			return
		}
		// Hold every first attempt until all workers are in flight, so the
		// 401s land as one burst.
		arrived <- struct{}{}
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc(EndpointTokenRefresh, refreshHandler(&refreshCalls, 100*time.Millisecond))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, seededStore("A1", "R1"))

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Statistics(context.Background())
		}(i)
	}
	for i := 0; i < workers; i++ {
		<-arrived
	}
	close(release)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, int32(1), refreshCalls.Load(), "refresh must run once per burst")
}

func TestRefreshFailureExpiresSession(t *testing.T) {
	var hookCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointStatistics, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc(EndpointTokenRefresh, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := seededStore("A1", "R1")
	c := New(srv.URL, st, WithSessionExpiredHook(func() { hookCalls.Add(1) }))

	_, err := c.Statistics(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	_, ok := st.Read()
	assert.False(t, ok, "credentials must be cleared on expiry")
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestRefreshTransportFailureExpiresSession(t *testing.T) {
	// The refresh connection dies mid-flight; the session must end the same
	// way it does on a rejected refresh token.
	var hookCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointStatistics, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc(EndpointTokenRefresh, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := seededStore("A1", "R1")
	c := New(srv.URL, st, WithSessionExpiredHook(func() { hookCalls.Add(1) }))

	_, err := c.Statistics(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	_, ok := st.Read()
	assert.False(t, ok, "credentials must be cleared when the refresh call dies")
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestExempt401IsNotARefreshTrigger(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointLogin, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc(EndpointTokenRefresh, refreshHandler(&refreshCalls, 0))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, seededStore("A1", "R1"))
	err := c.Login(context.Background(), "alice", "wrong")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Zero(t, refreshCalls.Load())
}

func TestLoginWritesPair(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointLogin, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice", r.PostFormValue("username"))
		assert.Equal(t, "secret", r.PostFormValue("password"))
		writeJSON(w, map[string]string{
			"access_token":  "A1",
			"refresh_token": "R1",
			"token_type":    "bearer",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := &store.Mem{}
	c := New(srv.URL, st)
	require.NoError(t, c.Login(context.Background(), "alice", "secret"))

	pair, ok := st.Read()
	require.True(t, ok)
	assert.Equal(t, store.TokenPair{Access: "A1", Refresh: "R1"}, pair)
}

func TestLogoutClearsLocalStateEvenOnServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointLogout, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := seededStore("A1", "R1")
	c := New(srv.URL, st)
	err := c.Logout(context.Background())

	assert.Error(t, err)
	_, ok := st.Read()
	assert.False(t, ok)
}

func TestPredictRecordingRejectsEmpty(t *testing.T) {
	c := New("http://127.0.0.1:1", seededStore("A1", "R1")) // unreachable on purpose
	_, err := c.PredictRecording(context.Background(), encoder.MIMEWav, nil)
	assert.ErrorIs(t, err, ErrEmptyRecording)
	_, err = c.PredictRecording(context.Background(), encoder.MIMEWav, []byte{})
	assert.ErrorIs(t, err, ErrEmptyRecording)
}

func TestPredictRecordingMultipart(t *testing.T) {
	payload := []byte("RIFFfakewav")
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointPredict, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()

		body, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, payload, body)
		assert.Equal(t, "recording.wav", header.Filename)
		assert.Equal(t, encoder.MIMEWav, header.Header.Get("Content-Type"))

		writeJSON(w, Prediction{ID: 1, Emotion: "happy", Confidence: 0.92})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, seededStore("A1", "R1"))
	pred, err := c.PredictRecording(context.Background(), encoder.MIMEWav, payload)
	require.NoError(t, err)
	assert.Equal(t, "happy", pred.Emotion)
	assert.InDelta(t, 0.92, pred.Confidence, 1e-9)
}

func TestPredictReplayResendsFullBody(t *testing.T) {
	payload := []byte("0123456789abcdef")
	var refreshCalls atomic.Int32
	var bodies [][]byte

	mux := http.NewServeMux()
	mux.HandleFunc(EndpointPredict, func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("audio")
		require.NoError(t, err)
		body, _ := io.ReadAll(file)
		file.Close()
		bodies = append(bodies, body)

		if r.Header.Get("Authorization") != "Bearer A2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, Prediction{Emotion: "neutral"})
	})
	mux.HandleFunc(EndpointTokenRefresh, refreshHandler(&refreshCalls, 0))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, seededStore("A1", "R1"))
	_, err := c.PredictRecording(context.Background(), encoder.MIMEWav, payload)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, payload, bodies[0])
	assert.Equal(t, payload, bodies[1], "replay must re-upload the full body")
}

func TestPredictFileUnsupportedExtension(t *testing.T) {
	c := New("http://127.0.0.1:1", seededStore("A1", "R1"))
	_, err := c.PredictFile(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPredictionsQueryParams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointPredictions, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("skip"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		writeJSON(w, []Prediction{{Emotion: "sad"}, {Emotion: "angry"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, seededStore("A1", "R1"))
	preds, err := c.Predictions(context.Background(), 10, 25)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "sad", preds[0].Emotion)
}

func TestNetErrorWrapsTransportFailure(t *testing.T) {
	c := New("http://127.0.0.1:1", seededStore("A1", "R1"), WithTimeout(500*time.Millisecond))
	_, err := c.Statistics(context.Background())

	var netErr *NetError
	assert.ErrorAs(t, err, &netErr)
}
