//go:generate mockgen -source=../reader.go   -destination=./mock_reader.go -package=mocks
//go:generate mockgen -source=../producer.go -destination=./mock_writer.go -package=mocks

package mocks
