// Package mqtt connects hvcrate to its broker.
//
// Client wraps paho with the behaviour the bridge relies on: it retries
// the first connection and reconnects with backoff, replays its own
// subscription table after every reconnect (sessions are clean), and
// keeps a retained status on hvcrate/system/status. The broker publishes
// "offline/unexpected_disconnect" from the last will if the process dies;
// Close replaces it with "offline/graceful_shutdown".
//
// Topics builds every hvcrate/... topic, so the bridge and tests agree on
// the layout:
//
//	hvcrate/state/{crate}/{record}     retained parameter values
//	hvcrate/command/{crate}/{ref}      writes
//	hvcrate/ack/{crate}/{ref}          write acknowledgements
//	hvcrate/request/{crate}/{id}       read, catalog and crate_info
//	hvcrate/response/{crate}/{id}      request answers
//	hvcrate/catalog/{crate}            retained parameter list
//	hvcrate/health/{crate}             retained bridge health
//
// Command topics change high voltage set points. Outside a lab network
// enable TLS and restrict them in the broker ACL.
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Hooks{Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands("crate1"), 1, handleCommand)
package mqtt
