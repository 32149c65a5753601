// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command archiverctl is the operator-facing CLI: config inspection,
// queue/history introspection, and dead-letter draining against a
// running deployment's Redis.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"

	"ticketarchiver/internal/archiver/config"
	"ticketarchiver/internal/archiver/history"
	"ticketarchiver/internal/archiver/queue"
)

type configPathOpt struct {
	ConfigPath string `long:"config" env:"ARCHIVER_CONFIG" description:"path to the YAML configuration file"`
}

type cmdValidateConfig struct {
	configPathOpt
}

func (c *cmdValidateConfig) Execute(_ []string) error {
	if _, err := config.Load(c.ConfigPath); err != nil {
		return err
	}
	fmt.Println("config: ok")
	return nil
}

type cmdDumpConfig struct {
	configPathOpt
}

func (c *cmdDumpConfig) Execute(_ []string) error {
	settings, err := config.Load(c.ConfigPath)
	if err != nil {
		return err
	}
	out, err := config.RedactedDump(settings)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

type cmdShowDeprecated struct{}

func (c *cmdShowDeprecated) Execute(_ []string) error {
	found := config.DeprecatedAliasesInUse(os.Environ())
	if len(found) == 0 {
		fmt.Println("no deprecated environment variables set")
		return nil
	}
	for _, name := range found {
		fmt.Printf("deprecated: %s is set; use its canonical replacement instead\n", name)
	}
	return nil
}

type cmdQueueStats struct {
	configPathOpt
}

func (c *cmdQueueStats) Execute(_ []string) error {
	settings, q, err := connectQueue(c.ConfigPath)
	if err != nil {
		return err
	}
	stats, err := q.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("work_stream=%s depth=%d pending=%d dlq_depth=%d\n",
		settings.Queue.WorkStream, stats.Depth, stats.Pending, stats.DLQDepth)
	return nil
}

type cmdQueueDrainDLQ struct {
	configPathOpt
	Limit int64 `long:"limit" default:"100" description:"maximum dead-lettered entries to drain"`
}

func (c *cmdQueueDrainDLQ) Execute(_ []string) error {
	_, q, err := connectQueue(c.ConfigPath)
	if err != nil {
		return err
	}
	drained, err := q.DrainDLQ(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	fmt.Printf("drained %d entries\n", drained)
	return nil
}

type cmdQueueHistory struct {
	configPathOpt
	Limit    int   `long:"limit" default:"100" description:"maximum history entries to print"`
	TicketID int64 `long:"ticket-id" description:"filter to one ticket id (0 means no filter)"`
}

func (c *cmdQueueHistory) Execute(_ []string) error {
	settings, err := config.Load(c.ConfigPath)
	if err != nil {
		return err
	}
	if settings.Workflow.RedisURL == "" {
		return fmt.Errorf("archiverctl: workflow.redis_url is not set, history is unavailable")
	}
	opts, err := redis.ParseURL(settings.Workflow.RedisURL)
	if err != nil {
		return err
	}
	client := redis.NewClient(opts)
	log := history.New(client, settings.History.Stream, settings.History.MaxLen, nil)

	var ticketID *int64
	if c.TicketID > 0 {
		ticketID = &c.TicketID
	}

	for _, entry := range log.Read(context.Background(), c.Limit, ticketID) {
		fmt.Printf("%s status=%s classification=%s message=%q\n", entry.ID, entry.Status, entry.Classification, entry.Message)
	}
	return nil
}

func connectQueue(configPath string) (config.Settings, *queue.Queue, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return config.Settings{}, nil, err
	}
	if settings.Workflow.RedisURL == "" {
		return config.Settings{}, nil, fmt.Errorf("archiverctl: workflow.redis_url is not set, the queue is unavailable")
	}
	opts, err := redis.ParseURL(settings.Workflow.RedisURL)
	if err != nil {
		return config.Settings{}, nil, err
	}
	client := redis.NewClient(opts)
	return settings, queue.New(client, config.ToQueueStreams(settings)), nil
}

func main() {
	parser := flags.NewParser(nil, flags.Default)

	add := func(name, short, long string, data flags.Commander) {
		if _, err := parser.AddCommand(name, short, long, data); err != nil {
			fmt.Fprintf(os.Stderr, "archiverctl: registering %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	add("validate-config", "Validate the configuration file", "Load and validate the configuration file, exiting non-zero on error.", &cmdValidateConfig{})
	add("dump-config", "Print the effective configuration", "Print the effective, secret-redacted configuration as YAML.", &cmdDumpConfig{})
	add("show-deprecated", "Report deprecated environment variables in use", "List any legacy/aliased environment variables currently set.", &cmdShowDeprecated{})
	add("queue-stats", "Print durable queue depth and pending counts", "Print work/DLQ stream depth and consumer pending count.", &cmdQueueStats{})
	add("queue-drain-dlq", "Drain the dead-letter stream", "Delete up to --limit dead-lettered entries after an operator has reviewed them.", &cmdQueueDrainDLQ{})
	add("queue-history", "Print recent processing history", "Print the most recent processing history entries, optionally filtered to one ticket.", &cmdQueueHistory{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
