/*
 * Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/internal/httperr"
)

const RequestHistorySize = 100

type HandleFunc func(any) (any, *httperr.Error)

type Completion struct {
	Ret     any
	Status  int
	Message string
}

// TrailingDelayQueue coalesces submissions: an item is handled once no
// newer item has arrived for the configured delay, and only the latest
// item is handled. Submissions coalesced into one run share a request ID.
type TrailingDelayQueue struct {
	mutex  sync.Mutex
	handle HandleFunc
	delay  time.Duration
	timer  *time.Timer
	gen    uint64     // bumped on every submit; stale timers are ignored
	item   any        // pending item, if not nil
	uid    string     // request ID of the pending item
	store  *lru.Cache // map uid:completion
	closed bool
	wg     sync.WaitGroup
}

func NewTrailingDelayQueue(handle HandleFunc, delay time.Duration) *TrailingDelayQueue {
	q := &TrailingDelayQueue{
		delay:  delay,
		handle: handle,
	}
	q.store, _ = lru.New(RequestHistorySize)

	return q
}

func (q *TrailingDelayQueue) Submit(item any) (string, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return "", fmt.Errorf("queue is shut down")
	}

	klog.Infof("Submit request; delay processing by %s", q.delay.String())
	q.item = item
	if len(q.uid) == 0 {
		q.uid = uuid.New().String()
		q.store.Add(q.uid, &Completion{
			Status:  http.StatusAccepted,
			Message: fmt.Sprintf("request ID %s has been created", q.uid),
		})
	}

	if q.timer != nil {
		q.timer.Stop()
	}
	q.gen++
	gen := q.gen
	q.timer = time.AfterFunc(q.delay, func() { q.process(gen) })

	return q.uid, nil
}

func (q *TrailingDelayQueue) process(gen uint64) {
	q.mutex.Lock()
	if q.closed || gen != q.gen || q.item == nil {
		q.mutex.Unlock()
		return
	}
	item, uid := q.item, q.uid
	q.item, q.uid, q.timer = nil, "", nil
	q.wg.Add(1)
	q.mutex.Unlock()
	defer q.wg.Done()

	klog.Infof("Processing request ID %s", uid)
	res := &Completion{}
	if data, err := q.handle(item); err != nil {
		res.Status = err.Code()
		res.Message = err.Error()
		klog.Errorf("HTTP %d: %s", res.Status, res.Message)
	} else {
		res.Ret = data
		res.Status = http.StatusOK
		klog.Info("HTTP 200")
	}

	q.mutex.Lock()
	q.store.Add(uid, res)
	q.mutex.Unlock()
}

func (q *TrailingDelayQueue) Get(uid string) *Completion {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if res, ok := q.store.Get(uid); ok {
		return res.(*Completion)
	}

	return &Completion{
		Message: fmt.Sprintf("request ID %s not found", uid),
		Status:  http.StatusNotFound,
	}
}

// Shutdown drops the pending item and waits for a running handler to return.
func (q *TrailingDelayQueue) Shutdown() {
	q.mutex.Lock()
	if q.closed {
		q.mutex.Unlock()
		return
	}
	klog.V(4).Infof("queue shutdown")
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.item = nil
	q.mutex.Unlock()

	q.wg.Wait()
}
