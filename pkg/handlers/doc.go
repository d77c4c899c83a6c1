// Package handlers holds the job handlers that ship with tubeworker.
//
// RegisterAll adds them to a queue.Registry under these paths:
//
//	noop        answers every job with a fixed verdict (delete by default)
//	log         logs the payload at a configured level and deletes the job
//	redis       RPUSHes or PUBLISHes the job record as JSON
//	postgres    inserts the job record into a table
//	mongo       inserts the job record into a collection
//	opensearch  indexes the job record, using the job id as document id
//	s3          stores the job record as <prefix><type>/<id>.json
//
// Every handler validates its options against a JSON schema when built and
// accepts three common options: "type" (the job type served, "*" by
// default), "payload_schema" (a JSON schema every payload must satisfy) and
// "on_failure" (a verdict returned when a storage write fails; without it
// the job stays reserved until its time-to-run expires).
//
// The storage handlers share SinkHandler: the backend connection is opened
// in Initialize, before the worker connects to the queue, and closed when
// the worker stops.
//
//	workers:
//	  - tubes: [audit]
//	    handlers:
//	      - path: postgres
//	        options:
//	          url: ${DATABASE_URL}
//	          table: audit.jobs
//	          on_failure: [release, {delay: 30s}]
package handlers
