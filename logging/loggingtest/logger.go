// Package loggingtest implements a logger that can be used in tests to wait
// for specific log entries to appear.
package loggingtest

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

type logSubscription struct {
	exp      string
	n        int
	response chan<- struct{}
}

type countMessage struct {
	expression string
	response   chan<- int
}

type logWatch struct {
	entries []string
	reqs    []*logSubscription
}

// Logger is a test logger that stores the entries and notifies the
// subscribers waiting for specific content.
type Logger struct {
	save   chan string
	notify chan<- logSubscription
	count  chan<- countMessage
	clear  chan struct{}
	mute   chan struct{}
	unmute chan struct{}
	quit   chan struct{}
}

var ErrWaitTimeout = errors.New("timeout")

func (lw *logWatch) save(e string) {
	lw.entries = append(lw.entries, e)
	for i := len(lw.reqs) - 1; i >= 0; i-- {
		req := lw.reqs[i]
		if strings.Contains(e, req.exp) {
			req.n--
			if req.n <= 0 {
				close(req.response)
				lw.reqs = append(lw.reqs[:i], lw.reqs[i+1:]...)
			}
		}
	}
}

func (lw *logWatch) notify(req logSubscription) {
	for i := len(lw.entries) - 1; i >= 0; i-- {
		if strings.Contains(lw.entries[i], req.exp) {
			req.n--
			if req.n == 0 {
				break
			}
		}
	}

	if req.n <= 0 {
		close(req.response)
	} else {
		lw.reqs = append(lw.reqs, &req)
	}
}

func (lw *logWatch) count(m countMessage) {
	var count int
	for _, e := range lw.entries {
		if strings.Contains(e, m.expression) {
			count++
		}
	}

	m.response <- count
}

func (lw *logWatch) clear() {
	lw.entries = nil
	lw.reqs = nil
}

// New creates a test logger. Call Close when done.
func New() *Logger {
	lw := &logWatch{}
	save := make(chan string)
	notify := make(chan logSubscription)
	count := make(chan countMessage)
	clear := make(chan struct{})
	mute := make(chan struct{})
	unmute := make(chan struct{})
	quit := make(chan struct{})

	go func() {
		var muted bool
		for {
			select {
			case e := <-save:
				if !muted {
					log.Println(e)
					lw.save(e)
				}
			case req := <-notify:
				lw.notify(req)
			case m := <-count:
				lw.count(m)
			case <-clear:
				lw.clear()
			case <-mute:
				muted = true
			case <-unmute:
				muted = false
			case <-quit:
				return
			}
		}
	}()

	return &Logger{
		save:   save,
		notify: notify,
		count:  count,
		clear:  clear,
		mute:   mute,
		unmute: unmute,
		quit:   quit,
	}
}

// entries logged after Close are dropped
func (tl *Logger) store(e string) {
	select {
	case tl.save <- e:
	case <-tl.quit:
	}
}

func (tl *Logger) logf(f string, a ...interface{}) {
	tl.store(fmt.Sprintf(f, a...))
}

func (tl *Logger) log(a ...interface{}) {
	tl.store(fmt.Sprint(a...))
}

// WaitForN blocks until the expression was found n times in the log
// entries, or the timeout expires.
func (tl *Logger) WaitForN(exp string, n int, to time.Duration) error {
	found := make(chan struct{}, 1)
	tl.notify <- logSubscription{exp, n, found}

	select {
	case <-found:
		return nil
	case <-time.After(to):
		return ErrWaitTimeout
	}
}

// WaitFor blocks until the expression appears in the log entries, or the
// timeout expires.
func (tl *Logger) WaitFor(exp string, to time.Duration) error {
	return tl.WaitForN(exp, 1, to)
}

// Count returns how many stored entries contain the expression.
func (tl *Logger) Count(expression string) int {
	rsp := make(chan int)
	tl.count <- countMessage{expression, rsp}
	return <-rsp
}

// Reset clears the stored entries and the pending subscriptions.
func (tl *Logger) Reset() {
	tl.clear <- struct{}{}
}

// Mute stops storing the entries and forwarding them to the standard log
// output.
func (tl *Logger) Mute() {
	tl.mute <- struct{}{}
}

// Unmute restores storing and forwarding the entries.
func (tl *Logger) Unmute() {
	tl.unmute <- struct{}{}
}

// Close stops the logger.
func (tl *Logger) Close() {
	close(tl.quit)
}

func (tl *Logger) Error(a ...interface{})            { tl.log(a...) }
func (tl *Logger) Errorf(f string, a ...interface{}) { tl.logf(f, a...) }
func (tl *Logger) Warn(a ...interface{})             { tl.log(a...) }
func (tl *Logger) Warnf(f string, a ...interface{})  { tl.logf(f, a...) }
func (tl *Logger) Info(a ...interface{})             { tl.log(a...) }
func (tl *Logger) Infof(f string, a ...interface{})  { tl.logf(f, a...) }
func (tl *Logger) Debug(a ...interface{})            { tl.log(a...) }
func (tl *Logger) Debugf(f string, a ...interface{}) { tl.logf(f, a...) }
