package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/robotalks/reflash/pkg/events"
	"github.com/robotalks/reflash/pkg/framework"
	"github.com/robotalks/reflash/pkg/update"
)

var (
	mqttURL = "mqtt://localhost:1883/brewpi/"
)

func init() {
	if val := os.Getenv("REFLASH_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, topicPrefix, err := events.ClientOptionsFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q := events.NewQueue(opts, topicPrefix)
	events.Subscribe(q, func(host string, e update.Event) {
		if e.Err != nil {
			log.Printf("%s %s [%s] %s -> %s: %v", host, e.RunID, e.Port, e.From, e.To, e.Err)
			return
		}
		log.Printf("%s %s [%s] %s -> %s: %s", host, e.RunID, e.Port, e.From, e.To, e.Message)
	})
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	framework.NewRunner().HandleSignals().
		Go(framework.RunnableFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})).
		Wait()
}
