package ingest

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/devblac/eventvault/internal/bytelit"
	"github.com/devblac/eventvault/internal/chunkstore"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Metadata columns written before the event arguments.
const (
	ColTransactionHash = "transaction_hash"
	ColContractAddress = "contract_address"
)

// eventColumns lists the table columns for an event, arguments in ABI order.
func eventColumns(ev abi.Event) []string {
	cols := []string{ColTransactionHash, ColContractAddress}
	for i, in := range ev.Inputs {
		cols = append(cols, chunkstore.ArgColumn(argName(in, i)))
	}
	return cols
}

// argName falls back to the position for unnamed ABI inputs.
func argName(in abi.Argument, i int) string {
	if in.Name != "" {
		return in.Name
	}
	return "arg" + strconv.Itoa(i)
}

// decodeLogs turns raw logs of one event into a chunk table.
func decodeLogs(ev abi.Event, logs []types.Log) (*chunkstore.Table, error) {
	t := chunkstore.NewTable(eventColumns(ev)...)
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		if len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		args, err := unpackLog(ev, lg)
		if err != nil {
			return nil, fmt.Errorf("decode %s log %s#%d: %w", ev.Name, lg.TxHash.Hex(), lg.Index, err)
		}

		values := []string{
			strings.ToLower(lg.TxHash.Hex()),
			strings.ToLower(lg.Address.Hex()),
		}
		for i, in := range ev.Inputs {
			v, err := formatValue(args[argName(in, i)])
			if err != nil {
				return nil, fmt.Errorf("format %s.%s: %w", ev.Name, argName(in, i), err)
			}
			values = append(values, v)
		}
		key := chunkstore.Key{
			BlockNumber:      lg.BlockNumber,
			TransactionIndex: uint64(lg.TxIndex),
			LogIndex:         uint64(lg.Index),
		}
		if err := t.Append(key, values...); err != nil {
			return nil, err
		}
	}
	t.SortByKey()
	return t, nil
}

func unpackLog(ev abi.Event, lg types.Log) (map[string]any, error) {
	var indexed, nonIndexed abi.Arguments
	for i, in := range ev.Inputs {
		in.Name = argName(in, i)
		if in.Indexed {
			indexed = append(indexed, in)
		} else {
			nonIndexed = append(nonIndexed, in)
		}
	}
	args := map[string]any{}
	if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	if len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(args, lg.Data); err != nil {
			return nil, fmt.Errorf("unpack data: %w", err)
		}
	}
	return args, nil
}

// formatValue renders a decoded ABI value as a CSV cell. Fixed-size byte
// arrays use the byte literal form that reads turn back into hex.
func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case *big.Int:
		return x.String(), nil
	case common.Address:
		return strings.ToLower(x.Hex()), nil
	case common.Hash:
		return strings.ToLower(x.Hex()), nil
	case []byte:
		return hexutil.Encode(x), nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		return fmt.Sprint(x), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return bytelit.Format(b), nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
