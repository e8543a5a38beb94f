package palgraph_test

import (
	"context"
	"fmt"
	"log"

	"github.com/policypal/palgraph"
	"github.com/policypal/palgraph/pkg/adapters/memory"
	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
	"github.com/policypal/palgraph/pkg/ports"
)

// ExampleNew demonstrates running a turn against in-memory backends. This is
// useful for testing, embedded scenarios, or when you don't want to rely on
// external services.
func ExampleNew() {
	// 1. Script the classification capability. Production code would use
	// the OpenAI adapter here.
	classifier := newScriptedClassifier(map[string]string{
		ports.TaskDocResolution: fmt.Sprintf(`{"resolved_uuids":[%q],"inference_confidence":"high"}`, baselID),
		ports.TaskQueryRewrite:  `{"optimized_query":"minimum CET1 capital ratio"}`,
		ports.TaskInquire:       `{"response":"The minimum CET1 ratio is 4.5% of risk-weighted assets [1].","citations":[]}`,
	})

	// 2. Seed documents and passages.
	entities := memory.NewEntityStore()
	entities.AddDocument(ports.Document{ID: baselID, Title: "Basel III Accord", Status: "ready", OwnerID: "user-1"})
	retriever := memory.NewRetriever()
	retriever.AddChunk("user-1", ports.Chunk{
		DocID:      baselID,
		DocTitle:   "Basel III Accord",
		Content:    "Banks must maintain a CET1 ratio of at least 4.5%.",
		Page:       12,
		Similarity: 0.9,
	})

	engine, err := palgraph.New(classifier,
		palgraph.WithEntities(entities),
		palgraph.WithRetriever(retriever),
	)
	if err != nil {
		log.Fatal(err)
	}

	// 3. Run one turn and stream its events.
	events, err := engine.Run(context.Background(), "thread-1", graph.RunInput{
		UserID:         "user-1",
		Content:        "What is the minimum capital ratio?",
		Action:         domain.ActionInquire,
		ExplicitDocIDs: []string{baselID},
	})
	if err != nil {
		log.Fatal(err)
	}

	for ev := range events {
		switch ev.Type {
		case domain.EventResponse:
			fmt.Println(ev.Response.Response)
		case domain.EventSuspended:
			fmt.Println("waiting for input:", ev.Suspension.Message)
		}
	}
	// Output: The minimum CET1 ratio is 4.5% of risk-weighted assets [1].
}
