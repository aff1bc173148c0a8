// Package queue provides the bounded FIFO and worker-pool consumer
// mixin shared by the Action, Camera, and Storage subsystems.
//
// MQTT ingress fans every inbound message out to three queues, one
// per subsystem, with a non-blocking enqueue: a full queue drops the
// newest message and logs a warning rather than ever blocking
// ingestion. Each subsystem then runs a Pool that dequeues with a
// bounded poll interval, discards messages its Predicate finds
// irrelevant, and dispatches the rest onto a fixed number of
// concurrent workers via Process.
//
// # Usage
//
//	q := queue.New("camera", cfg.Queues.CameraSize)
//	q.SetLogger(log)
//
//	pool := queue.NewPool(q, 4, isCameraTopic, handleCameraMessage)
//	pool.SetLogger(log)
//	go pool.Run(ctx)
//
//	// ingress:
//	q.Enqueue(queue.Message{DeviceID: id, Topic: topic, Payload: payload})
//
//	// shutdown:
//	cancel()
//	pool.WaitTimeout(2 * time.Second)
package queue
