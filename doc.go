/*
Package palgraph is a resumable reasoning pipeline for document-grounded
compliance assistants. A user turn flows through a fixed graph of stages:
intent classification, document resolution, input validation, one of four
action executors (summarize, inquire, compare, audit), and response
formatting. Any stage may suspend the run to ask the user a question; the
thread snapshot is persisted after every stage, so a suspended run can be
resumed later, from another process, by replaying the suspended stage with
the user's answer.

# Concept

The pipeline treats ambiguity as a first-class outcome, not an error. When
the classifier cannot tell which action the user wants or which document
they mean, the run pauses on a typed suspension (an action menu, a document
choice, or a free-text prompt) instead of guessing. Classification calls are
pinned deterministic, so the replayed stage reaches the same gate the user
answered.

# Usage

Build an Engine around a classifier and drive turns through it:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/policypal/palgraph"
		"github.com/policypal/palgraph/pkg/adapters/openai"
		"github.com/policypal/palgraph/pkg/domain"
		"github.com/policypal/palgraph/pkg/graph"
	)

	func main() {
		classifier := openai.New(openai.Config{APIKey: "..."}, nil)
		engine, err := palgraph.New(classifier)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		events, err := engine.Run(ctx, "thread-123", graph.RunInput{
			UserID:  "user-1",
			Content: "summarize the retention policy",
		})
		if err != nil {
			log.Fatal(err)
		}

		for ev := range events {
			switch ev.Type {
			case domain.EventStatus:
				fmt.Println("...", ev.Message)
			case domain.EventSuspended:
				fmt.Println("?", ev.Suspension.Message)
				// Answer with engine.Resume(ctx, "thread-123", domain.Resume{Value: "..."}).
			case domain.EventResponse:
				fmt.Println(ev.Response.Response)
			case domain.EventError:
				fmt.Println("error:", ev.Err)
			}
		}
	}

Storage defaults to in-memory; use WithStore with the file or redis adapter
for durable threads, and WithLocker for multi-process deployments.
*/
package palgraph
